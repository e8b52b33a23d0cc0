package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInput abono recibido del exterior (creación de factura o abono
// suelto). Los montos llegan como decimal en unidades mayores ("10.50") y se
// convierten a unidades menores exactas en el ledger.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"` // por defecto: ahora
	Notes     *PaymentNotes   `json:"notes,omitempty"`
}

// PaymentNotes notas estructuradas de un abono.
type PaymentNotes struct {
	Reason  string `json:"reason,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// CreateInvoiceRequest body para POST /api/invoices.
//
// AdvanceAmount es el camino de compatibilidad con el sistema anterior: un
// "abono" sin registro de pago. Si viene > 0 se consume como un abono inicial
// implícito (con nota reason=saldo_inicial); nunca se escribe el campo
// derivado directamente.
type CreateInvoiceRequest struct {
	ClientID             string          `json:"client_id"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	CreditAmount         decimal.Decimal `json:"credit_amount,omitempty"`
	Currency             string          `json:"currency,omitempty"` // por defecto la del tenant
	InitialPayments      []PaymentInput  `json:"payments,omitempty"`
	AdvanceAmount        decimal.Decimal `json:"advance_amount,omitempty"` // legado, ver arriba
	PrescriptionSnapshot json.RawMessage `json:"prescription,omitempty"`   // opaco, se adjunta tal cual
}

// AddPaymentRequest body para POST /api/invoices/:id/payments.
type AddPaymentRequest struct {
	PaymentInput
}

// UpdateInvoiceTotalsRequest body para PATCH /api/invoices/:id/totals.
// Campos nil = sin cambio.
type UpdateInvoiceTotalsRequest struct {
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
}

// PaymentResponse abono en respuestas.
type PaymentResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
	Notes     *PaymentNotes   `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceResponse factura con abonos y campos derivados.
type InvoiceResponse struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	ClientID        string            `json:"client_id"`
	InvoiceNumber   int64             `json:"invoice_number"`
	Currency        string            `json:"currency"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	CreditAmount    decimal.Decimal   `json:"credit_amount"`
	AdvanceAmount   decimal.Decimal   `json:"advance_amount"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	Status          string            `json:"status"`
	Payments        []PaymentResponse `json:"payments"`
	Prescription    json.RawMessage   `json:"prescription,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	DeletedAt       *time.Time        `json:"deleted_at,omitempty"`
}

// ClientSummaryResponse resumen de facturación de un cliente.
type ClientSummaryResponse struct {
	ClientID      string          `json:"client_id"`
	Currency      string          `json:"currency,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	InvoiceCount  int             `json:"invoice_count"`
	LastInvoiceAt *time.Time      `json:"last_invoice_at,omitempty"`
}

// InvoiceMutationResponse respuesta de las mutaciones del ledger: la factura
// resultante más el resumen recalculado del cliente dueño.
type InvoiceMutationResponse struct {
	Invoice        InvoiceResponse       `json:"invoice"`
	InvoiceSummary ClientSummaryResponse `json:"invoice_summary"`
}

// DeleteInvoiceResponse respuesta de DELETE /api/invoices/:id.
type DeleteInvoiceResponse struct {
	OK             bool                  `json:"ok"`
	HardDeleted    bool                  `json:"hard_deleted"`
	ClientID       string                `json:"client_id"`
	InvoiceSummary ClientSummaryResponse `json:"invoice_summary"`
}

// CreateClientRequest body para POST /api/clients.
type CreateClientRequest struct {
	Name       string `json:"name"`
	DocumentID string `json:"document_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ClientResponse cliente en respuestas, con su resumen cacheado.
type ClientResponse struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	Name       string                `json:"name"`
	DocumentID string                `json:"document_id"`
	Email      string                `json:"email,omitempty"`
	Phone      string                `json:"phone,omitempty"`
	Summary    ClientSummaryResponse `json:"invoice_summary"`
	CreatedAt  time.Time             `json:"created_at"`
}
