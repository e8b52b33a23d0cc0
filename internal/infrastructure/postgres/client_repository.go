package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/money"
	"github.com/visioncrm/optica-api/internal/domain/repository"
)

var _ repository.ClientRepository = (*ClientRepo)(nil)

// ClientRepo implementación de ClientRepository (usable con pool o tx).
// El resumen de facturación cacheado vive en columnas de la misma fila y lo
// reescribe completo el agregador.
type ClientRepo struct {
	q Querier
}

// NewClientRepository construye el adaptador. Pasar pool o tx (Querier).
func NewClientRepository(q Querier) *ClientRepo {
	return &ClientRepo{q: q}
}

// Create persiste un nuevo cliente.
func (r *ClientRepo) Create(client *entity.Client) error {
	const query = `
		INSERT INTO clients (id, tenant_id, name, document_id, email, phone,
		                     summary_total, summary_due, summary_currency,
		                     summary_count, summary_last_invoice_at,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(context.Background(), query,
		client.ID, client.TenantID, client.Name, client.DocumentID, client.Email, client.Phone,
		client.InvoiceSummary.TotalAmount.MinorUnits(), client.InvoiceSummary.DueAmount.MinorUnits(),
		client.InvoiceSummary.Currency,
		client.InvoiceSummary.InvoiceCount, client.InvoiceSummary.LastInvoiceAt,
		client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetByID obtiene un cliente por ID, scoped al tenant.
func (r *ClientRepo) GetByID(tenantID, id string) (*entity.Client, error) {
	const query = selectClient + ` WHERE id = $1 AND tenant_id = $2`
	return r.getOne(query, id, tenantID)
}

// GetByTenantAndDocument obtiene un cliente por tenant y documento de identidad.
func (r *ClientRepo) GetByTenantAndDocument(tenantID, documentID string) (*entity.Client, error) {
	const query = selectClient + ` WHERE tenant_id = $1 AND document_id = $2`
	return r.getOne(query, tenantID, documentID)
}

// ListByTenant lista clientes del tenant con paginación.
func (r *ClientRepo) ListByTenant(tenantID string, limit, offset int) ([]*entity.Client, error) {
	const query = selectClient + ` WHERE tenant_id = $1 ORDER BY name LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()
	var list []*entity.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Update actualiza los datos de contacto de un cliente.
func (r *ClientRepo) Update(client *entity.Client) error {
	const query = `
		UPDATE clients SET name = $3, document_id = $4, email = $5, phone = $6, updated_at = $7
		WHERE id = $1 AND tenant_id = $2`
	_, err := r.q.Exec(context.Background(), query,
		client.ID, client.TenantID, client.Name, client.DocumentID, client.Email, client.Phone, client.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// UpdateInvoiceSummary reescribe el caché del resumen de facturación.
func (r *ClientRepo) UpdateInvoiceSummary(tenantID, clientID string, summary *entity.ClientInvoiceSummary) error {
	const query = `
		UPDATE clients
		SET summary_total = $3, summary_due = $4, summary_currency = $5,
		    summary_count = $6, summary_last_invoice_at = $7, updated_at = now()
		WHERE id = $1 AND tenant_id = $2`
	_, err := r.q.Exec(context.Background(), query,
		clientID, tenantID,
		summary.TotalAmount.MinorUnits(), summary.DueAmount.MinorUnits(), summary.Currency,
		summary.InvoiceCount, summary.LastInvoiceAt,
	)
	if err != nil {
		return fmt.Errorf("update client summary: %w", err)
	}
	return nil
}

const selectClient = `
	SELECT id, tenant_id, name, document_id, email, phone,
	       summary_total, summary_due, summary_currency,
	       summary_count, summary_last_invoice_at,
	       created_at, updated_at
	FROM clients`

func (r *ClientRepo) getOne(query string, args ...any) (*entity.Client, error) {
	c, err := scanClient(r.q.QueryRow(context.Background(), query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func scanClient(row pgx.Row) (*entity.Client, error) {
	var c entity.Client
	var total, due int64
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.DocumentID, &c.Email, &c.Phone,
		&total, &due, &c.InvoiceSummary.Currency,
		&c.InvoiceSummary.InvoiceCount, &c.InvoiceSummary.LastInvoiceAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.InvoiceSummary.TotalAmount = money.FromMinorUnits(total)
	c.InvoiceSummary.DueAmount = money.FromMinorUnits(due)
	return &c, nil
}
