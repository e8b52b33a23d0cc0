package repository

import (
	"context"

	"github.com/visioncrm/optica-api/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia del ledger de facturas.
//
// El contrato de concurrencia es optimista: LoadForUpdate devuelve la factura
// con su Version vigente y SaveIfUnchanged solo escribe si la versión en la
// base sigue siendo la esperada; si no, retorna domain.ErrVersionConflict y el
// ledger repite el ciclo completo leer-mutar-recalcular-guardar. El guardado
// es atómico: cabecera y colección de abonos se persisten en una sola
// transacción o no se persiste nada.
type InvoiceRepository interface {
	// Create persiste una factura nueva con sus abonos iniciales.
	Create(ctx context.Context, inv *entity.Invoice) error

	// NextInvoiceNumber obtiene el siguiente consecutivo del tenant desde el
	// contador atómico del store (monotónico, tolera huecos, nunca repite).
	NextInvoiceNumber(ctx context.Context, tenantID string) (int64, error)

	// LoadForUpdate carga la factura (con abonos, incluso si está borrada
	// lógicamente) scoped al tenant. Devuelve nil si no existe o pertenece a
	// otro tenant: el ledger no distingue ambos casos hacia afuera.
	LoadForUpdate(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error)

	// SaveIfUnchanged escribe la factura si su versión en la base es
	// expectedVersion; en éxito incrementa inv.Version. Retorna
	// domain.ErrVersionConflict si otro escritor ganó.
	SaveIfUnchanged(ctx context.Context, inv *entity.Invoice, expectedVersion int) error

	// HardDelete elimina físicamente la factura y sus abonos.
	HardDelete(ctx context.Context, tenantID, invoiceID string) error

	// ListByClient lista las facturas de un cliente en orden de creación.
	ListByClient(ctx context.Context, tenantID, clientID string, includeDeleted bool) ([]*entity.Invoice, error)

	// SummarizeClient agrega las facturas no borradas del cliente
	// (recomputación completa, nunca contadores incrementales).
	SummarizeClient(ctx context.Context, tenantID, clientID string) (*entity.ClientInvoiceSummary, error)
}
