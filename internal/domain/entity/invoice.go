package entity

import (
	"time"

	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/money"
)

// InvoiceStatus estado de una factura derivado de sus montos. Nunca lo fija
// el caller: se recalcula después de cada mutación. La dimensión de workflow
// (enviada, vencida, anulada) vive fuera de este núcleo y no lo pisa.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"   // sin abonos registrados
	StatusPartial InvoiceStatus = "partial" // abonado en parte
	StatusPaid    InvoiceStatus = "paid"    // abonos + crédito cubren el total
)

// StatusFor deriva el estado como función pura de los tres montos.
// "paid" no es terminal: si luego se borra un abono, el estado vuelve a
// partial o draft, y eso es intencional.
func StatusFor(total, advance, credit money.Money) InvoiceStatus {
	if advance.Add(credit).Cmp(total) >= 0 {
		return StatusPaid
	}
	if advance.IsZero() {
		return StatusDraft
	}
	return StatusPartial
}

// Invoice es la cabecera de una factura con su colección de abonos.
// AdvanceAmount, RemainingAmount y Status son campos derivados: solo
// Recompute los escribe.
type Invoice struct {
	ID       string
	TenantID string
	ClientID string

	// InvoiceNumber consecutivo por tenant, asignado una sola vez en la
	// creación desde el contador atómico. Nunca se reasigna.
	InvoiceNumber int64

	TotalAmount  money.Money // fijo en la creación; cambia solo vía UpdateTotals
	CreditAmount money.Money // descuento manual, independiente de los abonos
	Currency     string      // código ISO, fijo en la creación

	AdvanceAmount   money.Money   // derivado: suma exacta de los abonos
	RemainingAmount money.Money   // derivado: max(total - advance - credit, 0)
	Status          InvoiceStatus // derivado: StatusFor

	// Payments en orden de inserción. Solo se agrega o quita; las entradas
	// nunca se mutan.
	Payments []*PaymentEntry

	// PrescriptionSnapshot fórmula óptica adjunta en la creación, opaca para
	// el ledger. Nunca se muta (registro de procedencia).
	PrescriptionSnapshot []byte

	// Version token de concurrencia optimista del repositorio.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // nil = activa (borrado lógico)
}

// IsDeleted indica si la factura está borrada lógicamente.
func (i *Invoice) IsDeleted() bool { return i.DeletedAt != nil }

// Recompute recalcula los campos derivados desde la colección de abonos.
// Es idempotente: recalcular dos veces sobre el mismo conjunto produce el
// mismo resultado.
func (i *Invoice) Recompute() {
	advance := money.Zero
	for _, p := range i.Payments {
		advance = advance.Add(p.Amount)
	}
	i.AdvanceAmount = advance
	i.RemainingAmount = i.TotalAmount.Sub(advance).SubClamped(i.CreditAmount)
	i.Status = StatusFor(i.TotalAmount, i.AdvanceAmount, i.CreditAmount)
}

// AddPayment agrega un abono validando las reglas del ledger:
// monto > 0 y que no exceda el saldo pendiente vigente. Recalcula derivados.
func (i *Invoice) AddPayment(p *PaymentEntry) error {
	if !p.Amount.IsPositive() {
		return domain.NewLedgerError(domain.CodeInvalidAmount, "el monto del abono debe ser mayor que cero")
	}
	if p.Amount.GreaterThan(i.RemainingAmount) {
		return domain.NewPaymentExceedsRemaining(i.RemainingAmount, i.Currency)
	}
	i.Payments = append(i.Payments, p)
	i.Recompute()
	return nil
}

// RemovePayment quita el abono con el ID dado y recalcula derivados.
// Es el único mecanismo de corrección: no existe editar un abono.
func (i *Invoice) RemovePayment(paymentID string) (*PaymentEntry, error) {
	for idx, p := range i.Payments {
		if p.ID == paymentID {
			i.Payments = append(i.Payments[:idx], i.Payments[idx+1:]...)
			i.Recompute()
			return p, nil
		}
	}
	return nil, domain.NewLedgerError(domain.CodePaymentNotFound, "abono no encontrado en la factura")
}

// ApplyTotals actualiza total y/o crédito. El nuevo total no puede quedar por
// debajo de lo ya abonado más el crédito.
func (i *Invoice) ApplyTotals(total, credit *money.Money) error {
	newTotal := i.TotalAmount
	if total != nil {
		newTotal = *total
	}
	newCredit := i.CreditAmount
	if credit != nil {
		newCredit = *credit
	}
	if !newTotal.IsPositive() {
		return domain.NewLedgerError(domain.CodeInvalidAmount, "el total debe ser mayor que cero")
	}
	if newCredit.IsNegative() {
		return domain.NewLedgerError(domain.CodeInvalidAmount, "el crédito no puede ser negativo")
	}
	if newTotal.LessThan(i.AdvanceAmount.Add(newCredit)) {
		return domain.NewLedgerError(domain.CodeTotalBelowPaid, "el total no puede ser menor que lo abonado más el crédito")
	}
	i.TotalAmount = newTotal
	i.CreditAmount = newCredit
	i.Recompute()
	return nil
}

// FindPayment busca un abono por ID (nil si no está).
func (i *Invoice) FindPayment(paymentID string) *PaymentEntry {
	for _, p := range i.Payments {
		if p.ID == paymentID {
			return p
		}
	}
	return nil
}
