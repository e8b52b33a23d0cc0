package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/money"
)

// ledgerErrorRoundTrip monta una app mínima cuyo handler falla con err y
// devuelve el status y el body decodificado de writeLedgerError.
func ledgerErrorRoundTrip(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return writeLedgerError(c, err)
	})
	resp, reqErr := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, reqErr)
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestWriteLedgerError_SaldoPendienteConMonedaDeDosDecimales(t *testing.T) {
	remaining := money.FromMinorUnits(4000)
	status, body := ledgerErrorRoundTrip(t, domain.NewPaymentExceedsRemaining(remaining, "EUR"))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.CodePaymentExceedsRemaining, body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, "la respuesta debe incluir details")
	assert.Equal(t, "40", details["remaining"])
	assert.Equal(t, "EUR", details["currency"])
}

func TestWriteLedgerError_SaldoPendienteConMonedaSinDecimales(t *testing.T) {
	// En JPY las unidades menores son yenes enteros: 400 pendientes deben
	// salir como 400, no como 4.
	remaining := money.FromMinorUnits(400)
	status, body := ledgerErrorRoundTrip(t, domain.NewPaymentExceedsRemaining(remaining, "JPY"))

	assert.Equal(t, http.StatusBadRequest, status)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, "la respuesta debe incluir details")
	assert.Equal(t, "400", details["remaining"])
	assert.Equal(t, "JPY", details["currency"])
}

func TestWriteLedgerError_StatusPorCodigo(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{domain.CodeInvoiceNotFound, http.StatusNotFound},
		{domain.CodePaymentNotFound, http.StatusNotFound},
		{domain.CodeInvoiceNotFoundOrActive, http.StatusNotFound},
		{domain.CodeConcurrentConflict, http.StatusConflict},
		{domain.CodeInvalidAmount, http.StatusBadRequest},
		{domain.CodeTotalBelowPaid, http.StatusBadRequest},
	}
	for _, tc := range cases {
		status, body := ledgerErrorRoundTrip(t, domain.NewLedgerError(tc.code, "rechazado"))
		assert.Equal(t, tc.status, status, "código %s", tc.code)
		assert.Equal(t, tc.code, body["code"])
	}
}
