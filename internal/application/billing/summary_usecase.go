package billing

import (
	"context"

	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/repository"
	"github.com/visioncrm/optica-api/pkg/logger"
)

// SummaryUseCase es el agregador de resumen de facturación por cliente.
//
// Refresh siempre recomputa el resumen completo desde las facturas no
// borradas del cliente; nunca parchea contadores incrementales, para que dos
// escritores concurrentes sobre el mismo cliente no puedan hacer derivar el
// caché. Es idempotente: recomputarlo de más es seguro.
type SummaryUseCase struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
	log         *logger.Logger
}

// NewSummaryUseCase construye el agregador.
func NewSummaryUseCase(invoiceRepo repository.InvoiceRepository, clientRepo repository.ClientRepository, log *logger.Logger) *SummaryUseCase {
	return &SummaryUseCase{invoiceRepo: invoiceRepo, clientRepo: clientRepo, log: log}
}

// Refresh recomputa el resumen del cliente y reescribe el caché en su fila.
func (uc *SummaryUseCase) Refresh(ctx context.Context, tenantID, clientID string) (*entity.ClientInvoiceSummary, error) {
	summary, err := uc.invoiceRepo.SummarizeClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if err := uc.clientRepo.UpdateInvoiceSummary(tenantID, clientID, summary); err != nil {
		return nil, err
	}
	uc.log.Debug().
		Str("tenant_id", tenantID).
		Str("client_id", clientID).
		Int("invoice_count", summary.InvoiceCount).
		Str("due", summary.DueAmount.String()).
		Msg("resumen de cliente recalculado")
	return summary, nil
}

// Get devuelve el resumen recomputado sin depender del caché (lectura forzada).
func (uc *SummaryUseCase) Get(ctx context.Context, tenantID, clientID string) (*entity.ClientInvoiceSummary, error) {
	client, err := uc.clientRepo.GetByID(tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}
	return uc.Refresh(ctx, tenantID, clientID)
}

// GetResponse devuelve el resumen recomputado ya mapeado a DTO.
func (uc *SummaryUseCase) GetResponse(ctx context.Context, tenantID, clientID string) (*dto.ClientSummaryResponse, error) {
	summary, err := uc.Get(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	resp := toSummaryResponse(clientID, summary)
	return &resp, nil
}
