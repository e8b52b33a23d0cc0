package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioncrm/optica-api/internal/domain/money"
)

// ──────────────────────────────────────────────────────────────────────────────
// Aritmética en unidades menores
// ──────────────────────────────────────────────────────────────────────────────

func TestMoney_Aritmetica(t *testing.T) {
	a := money.FromMinorUnits(1050) // 10.50 EUR
	b := money.FromMinorUnits(250)  // 2.50 EUR

	assert.Equal(t, int64(1300), a.Add(b).MinorUnits())
	assert.Equal(t, int64(800), a.Sub(b).MinorUnits())
	assert.Equal(t, int64(-800), b.Sub(a).MinorUnits(), "Sub puede quedar negativo")
	assert.Equal(t, int64(0), b.SubClamped(a).MinorUnits(), "SubClamped trunca en cero")
}

func TestMoney_Comparaciones(t *testing.T) {
	a := money.FromMinorUnits(100)
	b := money.FromMinorUnits(200)

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(money.FromMinorUnits(100)))

	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThan(b))
	assert.True(t, money.Zero.IsZero())
	assert.True(t, a.IsPositive())
	assert.True(t, money.FromMinorUnits(-1).IsNegative())
}

// ──────────────────────────────────────────────────────────────────────────────
// Conversión decimal en los bordes
// ──────────────────────────────────────────────────────────────────────────────

func TestMoney_Decimal(t *testing.T) {
	m := money.FromMinorUnits(1050)
	assert.True(t, m.Decimal(2).Equal(decimal.RequireFromString("10.50")))
	assert.True(t, m.Decimal(0).Equal(decimal.RequireFromString("1050")), "JPY: sin unidades menores")
}

func TestFromDecimal_Exacto(t *testing.T) {
	m, err := money.FromDecimal(decimal.RequireFromString("10.50"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), m.MinorUnits())

	m, err = money.FromDecimal(decimal.RequireFromString("1050"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), m.MinorUnits())
}

// La conversión nunca redondea: un tercer decimal en EUR es un error del
// caller, no algo que el ledger deba corregir en silencio.
func TestFromDecimal_FraccionDeUnidadMenor(t *testing.T) {
	_, err := money.FromDecimal(decimal.RequireFromString("10.505"), 2)
	assert.Error(t, err)

	_, err = money.FromDecimal(decimal.RequireFromString("10.5"), 0)
	assert.Error(t, err, "JPY no admite decimales")
}

func TestFromDecimal_Desborde(t *testing.T) {
	huge := decimal.New(1, 30) // 10^30
	_, err := money.FromDecimal(huge, 2)
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Exponentes por moneda
// ──────────────────────────────────────────────────────────────────────────────

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), money.Exponent("EUR"))
	assert.Equal(t, int32(2), money.Exponent("USD"))
	assert.Equal(t, int32(0), money.Exponent("JPY"))
	assert.Equal(t, int32(0), money.Exponent("jpy"), "insensible a mayúsculas")
	assert.Equal(t, int32(2), money.Exponent(""), "desconocido usa el exponente estándar")
}
