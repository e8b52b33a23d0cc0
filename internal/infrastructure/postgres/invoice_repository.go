package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/money"
	"github.com/visioncrm/optica-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository sobre PostgreSQL.
//
// Los montos se guardan como BIGINT de unidades menores (aritmética exacta
// end-to-end). La concurrencia optimista usa la columna version: el guardado
// es un UPDATE condicionado a la versión cargada, dentro de la misma
// transacción que reescribe los abonos, así cabecera y colección cambian
// juntas o no cambian.
type InvoiceRepo struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository construye el adaptador.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// NextInvoiceNumber incrementa y devuelve el consecutivo del tenant en un solo
// statement atómico (nunca leer-luego-escribir: dos peticiones concurrentes
// obtienen valores distintos).
func (r *InvoiceRepo) NextInvoiceNumber(ctx context.Context, tenantID string) (int64, error) {
	const query = `
		INSERT INTO tenant_invoice_counters (tenant_id, last_value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (tenant_id)
		DO UPDATE SET last_value = tenant_invoice_counters.last_value + 1, updated_at = now()
		RETURNING last_value`
	var n int64
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("next invoice number: %w", err)
	}
	return n, nil
}

// Create persiste la factura nueva con sus abonos iniciales en una transacción.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO invoices (id, tenant_id, client_id, invoice_number, currency,
		                      total_amount, credit_amount, advance_amount, remaining_amount,
		                      status, prescription, version, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = tx.Exec(ctx, query,
		inv.ID, inv.TenantID, inv.ClientID, inv.InvoiceNumber, inv.Currency,
		inv.TotalAmount.MinorUnits(), inv.CreditAmount.MinorUnits(),
		inv.AdvanceAmount.MinorUnits(), inv.RemainingAmount.MinorUnits(),
		string(inv.Status), prescriptionOrNil(inv.PrescriptionSnapshot), inv.Version,
		inv.CreatedAt, inv.UpdatedAt, inv.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number already exists: %w", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	if err := insertPayments(ctx, tx, inv); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadForUpdate carga la factura con sus abonos, scoped al tenant.
// Devuelve nil si no existe o es de otro tenant (no se distingue hacia afuera).
func (r *InvoiceRepo) LoadForUpdate(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error) {
	const query = `
		SELECT id, tenant_id, client_id, invoice_number, currency,
		       total_amount, credit_amount, advance_amount, remaining_amount,
		       status, prescription, version, created_at, updated_at, deleted_at
		FROM invoices WHERE id = $1 AND tenant_id = $2`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, invoiceID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	payments, err := r.loadPayments(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Payments = payments
	return inv, nil
}

// SaveIfUnchanged guarda cabecera y abonos si la versión en la base sigue
// siendo expectedVersion. En conflicto retorna domain.ErrVersionConflict sin
// efecto alguno.
func (r *InvoiceRepo) SaveIfUnchanged(ctx context.Context, inv *entity.Invoice, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		UPDATE invoices
		SET total_amount = $4, credit_amount = $5, advance_amount = $6,
		    remaining_amount = $7, status = $8, version = version + 1,
		    updated_at = $9, deleted_at = $10
		WHERE id = $1 AND tenant_id = $2 AND version = $3`
	tag, err := tx.Exec(ctx, query,
		inv.ID, inv.TenantID, expectedVersion,
		inv.TotalAmount.MinorUnits(), inv.CreditAmount.MinorUnits(),
		inv.AdvanceAmount.MinorUnits(), inv.RemainingAmount.MinorUnits(),
		string(inv.Status), inv.UpdatedAt, inv.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	// Reescribir los abonos con sus IDs y timestamps originales: el orden de
	// inserción se conserva por el bigserial seq.
	if _, err := tx.Exec(ctx, `DELETE FROM invoice_payments WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	if err := insertPayments(ctx, tx, inv); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	inv.Version = expectedVersion + 1
	return nil
}

// HardDelete elimina físicamente la factura; los abonos caen por FK CASCADE.
func (r *InvoiceRepo) HardDelete(ctx context.Context, tenantID, invoiceID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND tenant_id = $2`, invoiceID, tenantID)
	if err != nil {
		return fmt.Errorf("hard delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByClient lista las facturas del cliente en orden de creación.
func (r *InvoiceRepo) ListByClient(ctx context.Context, tenantID, clientID string, includeDeleted bool) ([]*entity.Invoice, error) {
	query := `
		SELECT id, tenant_id, client_id, invoice_number, currency,
		       total_amount, credit_amount, advance_amount, remaining_amount,
		       status, prescription, version, created_at, updated_at, deleted_at
		FROM invoices WHERE tenant_id = $1 AND client_id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at, invoice_number`

	rows, err := r.pool.Query(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, inv := range list {
		payments, err := r.loadPayments(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.Payments = payments
	}
	return list, nil
}

// SummarizeClient agrega las facturas no borradas del cliente. Recomputación
// completa en SQL; los SUM de BIGINT vuelven como NUMERIC y se escanean a
// decimal (codec shopspring) para convertirse exactos a unidades menores.
func (r *InvoiceRepo) SummarizeClient(ctx context.Context, tenantID, clientID string) (*entity.ClientInvoiceSummary, error) {
	const query = `
		SELECT COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(remaining_amount), 0),
		       COUNT(*),
		       MAX(created_at),
		       COALESCE(MAX(currency), '')
		FROM invoices
		WHERE tenant_id = $1 AND client_id = $2 AND deleted_at IS NULL`
	var total, due decimal.Decimal
	var count int
	var lastAt *time.Time
	var currency string
	err := r.pool.QueryRow(ctx, query, tenantID, clientID).Scan(&total, &due, &count, &lastAt, &currency)
	if err != nil {
		return nil, fmt.Errorf("summarize client: %w", err)
	}
	totalM, err := money.FromDecimal(total, 0)
	if err != nil {
		return nil, fmt.Errorf("summarize client: %w", err)
	}
	dueM, err := money.FromDecimal(due, 0)
	if err != nil {
		return nil, fmt.Errorf("summarize client: %w", err)
	}
	return &entity.ClientInvoiceSummary{
		TotalAmount:   totalM,
		DueAmount:     dueM,
		Currency:      currency,
		InvoiceCount:  count,
		LastInvoiceAt: lastAt,
	}, nil
}

func (r *InvoiceRepo) loadPayments(ctx context.Context, invoiceID string) ([]*entity.PaymentEntry, error) {
	const query = `
		SELECT id, invoice_id, amount, method, reference, paid_at,
		       notes_reason, notes_comment, created_at, updated_at
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var list []*entity.PaymentEntry
	for rows.Next() {
		var p entity.PaymentEntry
		var amount int64
		var method string
		if err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &method, &p.Reference,
			&p.PaidAt, &p.Notes.Reason, &p.Notes.Comment, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = money.FromMinorUnits(amount)
		p.Method = entity.PaymentMethod(method)
		list = append(list, &p)
	}
	return list, rows.Err()
}

func insertPayments(ctx context.Context, tx pgx.Tx, inv *entity.Invoice) error {
	const query = `
		INSERT INTO invoice_payments (id, invoice_id, amount, method, reference,
		                              paid_at, notes_reason, notes_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, p := range inv.Payments {
		_, err := tx.Exec(ctx, query,
			p.ID, inv.ID, p.Amount.MinorUnits(), string(p.Method), p.Reference,
			p.PaidAt, p.Notes.Reason, p.Notes.Comment, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var total, credit, advance, remaining int64
	var status string
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.ClientID, &inv.InvoiceNumber, &inv.Currency,
		&total, &credit, &advance, &remaining,
		&status, &inv.PrescriptionSnapshot, &inv.Version,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.TotalAmount = money.FromMinorUnits(total)
	inv.CreditAmount = money.FromMinorUnits(credit)
	inv.AdvanceAmount = money.FromMinorUnits(advance)
	inv.RemainingAmount = money.FromMinorUnits(remaining)
	inv.Status = entity.InvoiceStatus(status)
	return &inv, nil
}

func prescriptionOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
