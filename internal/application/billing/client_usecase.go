package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/repository"
)

// ClientUseCase casos de uso de clientes de la óptica.
type ClientUseCase struct {
	clientRepo repository.ClientRepository
}

// NewClientUseCase construye el caso de uso.
func NewClientUseCase(clientRepo repository.ClientRepository) *ClientUseCase {
	return &ClientUseCase{clientRepo: clientRepo}
}

// Create registra un cliente nuevo del tenant. Retorna ErrDuplicate si ya
// existe uno con el mismo documento.
func (uc *ClientUseCase) Create(tenantID string, in dto.CreateClientRequest) (*dto.ClientResponse, error) {
	if in.Name == "" || in.DocumentID == "" {
		return nil, domain.ErrInvalidInput
	}
	existing, err := uc.clientRepo.GetByTenantAndDocument(tenantID, in.DocumentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	now := time.Now()
	client := &entity.Client{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       in.Name,
		DocumentID: in.DocumentID,
		Email:      in.Email,
		Phone:      in.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.clientRepo.Create(client); err != nil {
		return nil, err
	}
	return toClientResponse(client), nil
}

// GetByID obtiene un cliente del tenant con su resumen cacheado.
func (uc *ClientUseCase) GetByID(tenantID, id string) (*dto.ClientResponse, error) {
	client, err := uc.clientRepo.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}
	return toClientResponse(client), nil
}

// List lista clientes del tenant con paginación.
func (uc *ClientUseCase) List(tenantID string, page dto.PageRequest) ([]*dto.ClientResponse, error) {
	page.DefaultPage()
	clients, err := uc.clientRepo.ListByTenant(tenantID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	return out, nil
}

func toClientResponse(c *entity.Client) *dto.ClientResponse {
	return &dto.ClientResponse{
		ID:         c.ID,
		TenantID:   c.TenantID,
		Name:       c.Name,
		DocumentID: c.DocumentID,
		Email:      c.Email,
		Phone:      c.Phone,
		Summary:    toSummaryResponse(c.ID, &c.InvoiceSummary),
		CreatedAt:  c.CreatedAt,
	}
}
