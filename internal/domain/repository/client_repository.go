package repository

import "github.com/visioncrm/optica-api/internal/domain/entity"

// ClientRepository define el puerto de persistencia para Client.
type ClientRepository interface {
	Create(client *entity.Client) error
	GetByID(tenantID, id string) (*entity.Client, error)
	GetByTenantAndDocument(tenantID, documentID string) (*entity.Client, error)
	ListByTenant(tenantID string, limit, offset int) ([]*entity.Client, error)
	Update(client *entity.Client) error
	// UpdateInvoiceSummary reescribe el caché del resumen de facturación.
	UpdateInvoiceSummary(tenantID, clientID string, summary *entity.ClientInvoiceSummary) error
}
