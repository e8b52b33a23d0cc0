package domain

import (
	"errors"
	"fmt"

	"github.com/visioncrm/optica-api/internal/domain/money"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")

	// ErrVersionConflict lo retorna el repositorio cuando el guardado
	// optimista encuentra una versión distinta a la cargada. El ledger lo
	// reintenta internamente; el caller nunca lo ve directamente.
	ErrVersionConflict = errors.New("conflicto de versión al guardar")
)

// Códigos estables de error del ledger de facturación. Se exponen tal cual en
// las respuestas HTTP para que el frontend pueda reaccionar sin parsear texto.
const (
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodePaymentExceedsTotal     = "PAYMENT_EXCEEDS_TOTAL"
	CodePaymentExceedsRemaining = "PAYMENT_EXCEEDS_REMAINING"
	CodeTotalBelowPaid          = "TOTAL_BELOW_PAID"
	CodeInvoiceNotFound         = "INVOICE_NOT_FOUND"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodeInvoiceNotFoundOrActive = "INVOICE_NOT_FOUND_OR_ACTIVE"
	CodeConcurrentConflict      = "CONCURRENT_UPDATE_CONFLICT"
)

// LedgerError es un error de regla de negocio del ledger. Lleva el código
// estable y, cuando aplica, las cifras autoritativas del momento del rechazo
// (ej: el saldo pendiente real) para que el caller pueda autocorregirse sin
// otra ida y vuelta.
type LedgerError struct {
	Code      string
	Message   string
	Remaining *money.Money // saldo pendiente actual (solo PAYMENT_EXCEEDS_REMAINING)
	Currency  string       // moneda de la factura; fija la escala de Remaining
}

// Error implementa error.
func (e *LedgerError) Error() string {
	if e.Remaining != nil {
		return fmt.Sprintf("%s: %s (pendiente=%s)", e.Code, e.Message, e.Remaining)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewLedgerError construye un error de negocio con código estable.
func NewLedgerError(code, message string) *LedgerError {
	return &LedgerError{Code: code, Message: message}
}

// NewPaymentExceedsRemaining construye el rechazo por exceso de pago
// incluyendo el saldo pendiente vigente y la moneda de la factura.
func NewPaymentExceedsRemaining(remaining money.Money, currency string) *LedgerError {
	return &LedgerError{
		Code:      CodePaymentExceedsRemaining,
		Message:   "el pago excede el saldo pendiente de la factura",
		Remaining: &remaining,
		Currency:  currency,
	}
}

// IsLedgerCode indica si err es un LedgerError con el código dado.
func IsLedgerCode(err error, code string) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Code == code
}
