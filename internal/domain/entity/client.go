package entity

import (
	"time"

	"github.com/visioncrm/optica-api/internal/domain/money"
)

// Client representa un cliente/paciente de la óptica (facturación y agenda).
type Client struct {
	ID         string
	TenantID   string
	Name       string
	DocumentID string // documento de identidad (NIF/DNI/cédula)
	Email      string
	Phone      string

	// InvoiceSummary caché del resumen de facturación, recalculado completo
	// por el agregador tras cada mutación del ledger. Nunca se parchea
	// incrementalmente: siempre se reescribe desde las facturas vigentes.
	InvoiceSummary ClientInvoiceSummary

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientInvoiceSummary resumen de facturación de un cliente sobre sus
// facturas no borradas. Es un valor derivado, no fuente de verdad.
type ClientInvoiceSummary struct {
	TotalAmount   money.Money // suma de totales
	DueAmount     money.Money // suma de saldos pendientes
	Currency      string      // moneda de las facturas; vacío si no hay ninguna
	InvoiceCount  int
	LastInvoiceAt *time.Time // nil si no hay facturas
}
