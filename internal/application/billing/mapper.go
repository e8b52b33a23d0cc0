package billing

import (
	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/money"
)

// toInvoiceResponse mapea la entidad a DTO, convirtiendo los montos a decimal
// en unidades mayores con el exponente de la moneda de la factura.
func toInvoiceResponse(inv *entity.Invoice) dto.InvoiceResponse {
	exp := money.Exponent(inv.Currency)
	payments := make([]dto.PaymentResponse, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		payments = append(payments, toPaymentResponse(p, exp))
	}
	return dto.InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		ClientID:        inv.ClientID,
		InvoiceNumber:   inv.InvoiceNumber,
		Currency:        inv.Currency,
		TotalAmount:     inv.TotalAmount.Decimal(exp),
		CreditAmount:    inv.CreditAmount.Decimal(exp),
		AdvanceAmount:   inv.AdvanceAmount.Decimal(exp),
		RemainingAmount: inv.RemainingAmount.Decimal(exp),
		Status:          string(inv.Status),
		Payments:        payments,
		Prescription:    inv.PrescriptionSnapshot,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		DeletedAt:       inv.DeletedAt,
	}
}

func toPaymentResponse(p *entity.PaymentEntry, exponent int32) dto.PaymentResponse {
	var notes *dto.PaymentNotes
	if !p.Notes.IsEmpty() {
		notes = &dto.PaymentNotes{Reason: p.Notes.Reason, Comment: p.Notes.Comment}
	}
	return dto.PaymentResponse{
		ID:        p.ID,
		Amount:    p.Amount.Decimal(exponent),
		Method:    string(p.Method),
		Reference: p.Reference,
		PaidAt:    p.PaidAt,
		Notes:     notes,
		CreatedAt: p.CreatedAt,
	}
}

// toSummaryResponse mapea el resumen del cliente. Los montos se convierten con
// el exponente de la moneda de las facturas resumidas.
func toSummaryResponse(clientID string, s *entity.ClientInvoiceSummary) dto.ClientSummaryResponse {
	exp := money.Exponent(s.Currency)
	return dto.ClientSummaryResponse{
		ClientID:      clientID,
		Currency:      s.Currency,
		TotalAmount:   s.TotalAmount.Decimal(exp),
		DueAmount:     s.DueAmount.Decimal(exp),
		InvoiceCount:  s.InvoiceCount,
		LastInvoiceAt: s.LastInvoiceAt,
	}
}
