package entity

import (
	"fmt"
	"time"

	"github.com/visioncrm/optica-api/internal/domain/money"
)

// PaymentMethod método de pago de un abono.
type PaymentMethod string

// Métodos de pago soportados. El valor vacío significa "no informado".
const (
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodCheck    PaymentMethod = "check"
	MethodPaypal   PaymentMethod = "paypal"
	MethodStripe   PaymentMethod = "stripe"
	MethodOther    PaymentMethod = "other"
	MethodNone     PaymentMethod = ""
)

// ParsePaymentMethod valida un método de pago recibido del exterior.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodCheck, MethodPaypal, MethodStripe, MethodOther, MethodNone:
		return m, nil
	default:
		return MethodNone, fmt.Errorf("método de pago desconocido: %q", s)
	}
}

// PaymentNotes notas estructuradas de un abono. Forma cerrada: el origen
// modelaba esto como un mapa libre; aquí solo motivo y comentario.
type PaymentNotes struct {
	Reason  string
	Comment string
}

// IsEmpty indica si no hay ninguna nota.
func (n PaymentNotes) IsEmpty() bool { return n.Reason == "" && n.Comment == "" }

// PaymentEntry es el registro inmutable de un movimiento de dinero contra una
// factura. Se crea solo a través del ledger (AddPayment o pagos iniciales en
// la creación) y nunca se edita: la corrección es borrar y volver a agregar,
// para que el historial sea auditable.
type PaymentEntry struct {
	ID        string
	InvoiceID string
	Amount    money.Money // siempre > 0
	Method    PaymentMethod
	Reference string // texto libre, ej. número de cheque
	PaidAt    time.Time
	Notes     PaymentNotes
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone devuelve una copia del abono (los abonos se tratan como valores).
func (p *PaymentEntry) Clone() *PaymentEntry {
	cp := *p
	return &cp
}
