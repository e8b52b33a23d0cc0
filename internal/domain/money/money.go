// Package money implementa el tipo monetario del ledger: unidades menores
// (centavos) en un entero de 64 bits. Toda la aritmética es exacta; nunca se
// usa un float binario. La conversión a/desde decimal ocurre solo en los
// bordes (JSON, NUMERIC de PostgreSQL) y falla si produciría una fracción de
// unidad menor.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money es un monto en unidades menores de la moneda (ej: centavos de EUR).
// El valor cero es utilizable directamente.
type Money struct {
	units int64
}

// Zero es el monto cero.
var Zero = Money{}

// FromMinorUnits construye un Money desde unidades menores.
func FromMinorUnits(units int64) Money {
	return Money{units: units}
}

// MinorUnits devuelve las unidades menores.
func (m Money) MinorUnits() int64 { return m.units }

// Add suma dos montos.
func (m Money) Add(o Money) Money {
	return Money{units: m.units + o.units}
}

// Sub resta o de m. El resultado puede ser negativo; los contextos que exigen
// no-negatividad deben validar con IsNegative o usar SubClamped.
func (m Money) Sub(o Money) Money {
	return Money{units: m.units - o.units}
}

// SubClamped resta o de m y trunca en cero (para saldos pendientes que nunca
// se muestran negativos).
func (m Money) SubClamped(o Money) Money {
	r := m.units - o.units
	if r < 0 {
		r = 0
	}
	return Money{units: r}
}

// Cmp compara: -1 si m < o, 0 si iguales, 1 si m > o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.units < o.units:
		return -1
	case m.units > o.units:
		return 1
	default:
		return 0
	}
}

// IsZero indica si el monto es exactamente cero.
func (m Money) IsZero() bool { return m.units == 0 }

// IsNegative indica si el monto es menor que cero.
func (m Money) IsNegative() bool { return m.units < 0 }

// IsPositive indica si el monto es mayor que cero.
func (m Money) IsPositive() bool { return m.units > 0 }

// GreaterThan indica m > o.
func (m Money) GreaterThan(o Money) bool { return m.units > o.units }

// LessThan indica m < o.
func (m Money) LessThan(o Money) bool { return m.units < o.units }

// Decimal devuelve el monto como decimal en unidades mayores de la moneda,
// usando el exponente indicado (2 para EUR: 1050 -> 10.50).
func (m Money) Decimal(exponent int32) decimal.Decimal {
	return decimal.New(m.units, -exponent)
}

// String imprime las unidades menores (para logs y mensajes de error).
func (m Money) String() string {
	return fmt.Sprintf("%d", m.units)
}

// FromDecimal convierte un decimal en unidades mayores a Money, con el
// exponente de la moneda. Retorna error si el valor tiene más decimales de
// los que la moneda admite: aquí nunca se redondea.
func FromDecimal(d decimal.Decimal, exponent int32) (Money, error) {
	shifted := d.Shift(exponent)
	if !shifted.IsInteger() {
		return Zero, fmt.Errorf("money: %s tiene fracción de unidad menor (exponente %d)", d.String(), exponent)
	}
	if !shifted.BigInt().IsInt64() {
		return Zero, fmt.Errorf("money: %s desborda int64", d.String())
	}
	return Money{units: shifted.IntPart()}, nil
}
