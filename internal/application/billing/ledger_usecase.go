package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/money"
	"github.com/visioncrm/optica-api/internal/domain/repository"
	"github.com/visioncrm/optica-api/pkg/logger"
)

// reasonLegacyAdvance motivo del abono implícito generado por el campo legado
// advance_amount en la creación de la factura.
const reasonLegacyAdvance = "saldo_inicial"

// defaultMaxRetries reintentos del ciclo leer-mutar-guardar ante conflicto de
// versión, antes de rendirse con CONCURRENT_UPDATE_CONFLICT.
const defaultMaxRetries = 3

// LedgerUseCase es el ledger de pagos: dueño de la verdad monetaria de cada
// factura (total, abonos, saldo, estado) y de las reglas para mutarla.
//
// Toda mutación sobre una factura existente sigue el mismo ciclo: cargar el
// estado vigente, aplicar la mutación sobre la entidad, recalcular derivados
// y guardar bajo concurrencia optimista; ante conflicto se repite el ciclo
// completo, de modo que las validaciones (ej. saldo pendiente) siempre corren
// contra el último estado persistido y nunca contra una copia vieja.
type LedgerUseCase struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
	tenantRepo  repository.TenantRepository
	summary     *SummaryUseCase
	maxRetries  int
	log         *logger.Logger
}

// NewLedgerUseCase construye el ledger. maxRetries <= 0 usa el valor por defecto.
func NewLedgerUseCase(
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	tenantRepo repository.TenantRepository,
	summary *SummaryUseCase,
	maxRetries int,
	log *logger.Logger,
) *LedgerUseCase {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &LedgerUseCase{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		tenantRepo:  tenantRepo,
		summary:     summary,
		maxRetries:  maxRetries,
		log:         log,
	}
}

// CreateInvoice crea una factura con abonos iniciales opcionales, le asigna
// el consecutivo del tenant y deja los derivados calculados.
func (uc *LedgerUseCase) CreateInvoice(ctx context.Context, tenantID string, in dto.CreateInvoiceRequest) (*dto.InvoiceMutationResponse, error) {
	if in.ClientID == "" {
		return nil, domain.ErrInvalidInput
	}
	client, err := uc.clientRepo.GetByID(tenantID, in.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}

	currency := in.Currency
	if currency == "" {
		if tenant, err := uc.tenantRepo.GetByID(tenantID); err == nil && tenant != nil && tenant.Currency != "" {
			currency = tenant.Currency
		} else {
			currency = "EUR"
		}
	}
	exp := money.Exponent(currency)

	total, err := amountFromDecimal(in.TotalAmount, exp)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, domain.NewLedgerError(domain.CodeInvalidAmount, "el total de la factura debe ser mayor que cero")
	}
	credit, err := amountFromDecimal(in.CreditAmount, exp)
	if err != nil {
		return nil, err
	}
	if credit.IsNegative() {
		return nil, domain.NewLedgerError(domain.CodeInvalidAmount, "el crédito no puede ser negativo")
	}

	// Compatibilidad con el sistema anterior: un advance_amount sin registro
	// de pago se consume como abono inicial implícito. El historial
	// financiero no se pierde: queda como entrada auditable del ledger.
	inputs := in.InitialPayments
	if in.AdvanceAmount.IsPositive() {
		inputs = append(inputs, dto.PaymentInput{
			Amount: in.AdvanceAmount,
			Notes:  &dto.PaymentNotes{Reason: reasonLegacyAdvance},
		})
	}

	now := time.Now()
	invoiceID := uuid.New().String()
	sum := money.Zero
	entries := make([]*entity.PaymentEntry, 0, len(inputs))
	for _, p := range inputs {
		entry, err := buildPaymentEntry(invoiceID, p, now, exp)
		if err != nil {
			return nil, err
		}
		sum = sum.Add(entry.Amount)
		entries = append(entries, entry)
	}
	// La suma de abonos iniciales más el crédito no puede exceder el total.
	if sum.Add(credit).GreaterThan(total) {
		return nil, domain.NewLedgerError(domain.CodePaymentExceedsTotal, "los abonos iniciales más el crédito exceden el total de la factura")
	}

	number, err := uc.invoiceRepo.NextInvoiceNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	inv := &entity.Invoice{
		ID:                   invoiceID,
		TenantID:             tenantID,
		ClientID:             in.ClientID,
		InvoiceNumber:        number,
		TotalAmount:          total,
		CreditAmount:         credit,
		Currency:             currency,
		Payments:             entries,
		PrescriptionSnapshot: in.PrescriptionSnapshot,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	inv.Recompute()

	if err := uc.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("tenant_id", tenantID).
		Str("invoice_id", inv.ID).
		Int64("invoice_number", inv.InvoiceNumber).
		Str("status", string(inv.Status)).
		Msg("factura creada")

	return uc.mutationResponse(ctx, inv)
}

// AddPayment agrega un abono a la factura. El monto se valida contra el saldo
// pendiente del último estado persistido, dentro del ciclo optimista.
func (uc *LedgerUseCase) AddPayment(ctx context.Context, tenantID, invoiceID string, in dto.AddPaymentRequest) (*dto.InvoiceMutationResponse, error) {
	inv, err := uc.mutate(ctx, tenantID, invoiceID, domain.CodeInvoiceNotFound, func(inv *entity.Invoice) error {
		if inv.IsDeleted() {
			return domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
		}
		entry, err := buildPaymentEntry(inv.ID, in.PaymentInput, time.Now(), money.Exponent(inv.Currency))
		if err != nil {
			return err
		}
		return inv.AddPayment(entry)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("tenant_id", tenantID).
		Str("invoice_id", inv.ID).
		Str("status", string(inv.Status)).
		Str("advance", inv.AdvanceAmount.String()).
		Msg("abono registrado")
	return uc.mutationResponse(ctx, inv)
}

// DeletePayment quita un abono y recalcula derivados. El estado puede
// retroceder (paid -> partial, partial -> draft); es el único mecanismo de
// corrección del ledger.
func (uc *LedgerUseCase) DeletePayment(ctx context.Context, tenantID, invoiceID, paymentID string) (*dto.InvoiceMutationResponse, error) {
	inv, err := uc.mutate(ctx, tenantID, invoiceID, domain.CodeInvoiceNotFound, func(inv *entity.Invoice) error {
		if inv.IsDeleted() {
			return domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
		}
		_, err := inv.RemovePayment(paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("tenant_id", tenantID).
		Str("invoice_id", inv.ID).
		Str("payment_id", paymentID).
		Str("status", string(inv.Status)).
		Msg("abono eliminado")
	return uc.mutationResponse(ctx, inv)
}

// UpdateInvoiceTotals cambia total y/o crédito. El nuevo total no puede
// quedar por debajo de lo ya abonado más el crédito.
func (uc *LedgerUseCase) UpdateInvoiceTotals(ctx context.Context, tenantID, invoiceID string, in dto.UpdateInvoiceTotalsRequest) (*dto.InvoiceMutationResponse, error) {
	inv, err := uc.mutate(ctx, tenantID, invoiceID, domain.CodeInvoiceNotFound, func(inv *entity.Invoice) error {
		if inv.IsDeleted() {
			return domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
		}
		exp := money.Exponent(inv.Currency)
		var total, credit *money.Money
		if in.TotalAmount != nil {
			t, err := amountFromDecimal(*in.TotalAmount, exp)
			if err != nil {
				return err
			}
			total = &t
		}
		if in.CreditAmount != nil {
			c, err := amountFromDecimal(*in.CreditAmount, exp)
			if err != nil {
				return err
			}
			credit = &c
		}
		return inv.ApplyTotals(total, credit)
	})
	if err != nil {
		return nil, err
	}
	return uc.mutationResponse(ctx, inv)
}

// DeleteInvoice borra una factura. Por defecto es borrado lógico (los abonos
// se conservan para auditoría y la factura sale del resumen del cliente).
// Con hard=true se elimina físicamente junto con sus abonos; la confirmación
// explícita la exige la capa que llama. cascade se acepta por compatibilidad:
// el borrado físico siempre arrastra los abonos (la factura es una sola
// unidad de persistencia).
func (uc *LedgerUseCase) DeleteInvoice(ctx context.Context, tenantID, invoiceID string, cascade, hard bool) (*dto.DeleteInvoiceResponse, error) {
	_ = cascade
	var clientID string
	if hard {
		inv, err := uc.invoiceRepo.LoadForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
		}
		clientID = inv.ClientID
		if err := uc.invoiceRepo.HardDelete(ctx, tenantID, invoiceID); err != nil {
			return nil, err
		}
		uc.log.Warn().
			Str("tenant_id", tenantID).
			Str("invoice_id", invoiceID).
			Msg("factura eliminada físicamente")
	} else {
		inv, err := uc.mutate(ctx, tenantID, invoiceID, domain.CodeInvoiceNotFound, func(inv *entity.Invoice) error {
			if inv.IsDeleted() {
				return domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
			}
			now := time.Now()
			inv.DeletedAt = &now
			return nil
		})
		if err != nil {
			return nil, err
		}
		clientID = inv.ClientID
	}

	summary, err := uc.summary.Refresh(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	return &dto.DeleteInvoiceResponse{
		OK:             true,
		HardDeleted:    hard,
		ClientID:       clientID,
		InvoiceSummary: toSummaryResponse(clientID, summary),
	}, nil
}

// RestoreInvoice revierte un borrado lógico. Si la factura no existe o no
// está borrada, el error lleva el código INVOICE_NOT_FOUND_OR_ACTIVE.
func (uc *LedgerUseCase) RestoreInvoice(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, err := uc.mutate(ctx, tenantID, invoiceID, domain.CodeInvoiceNotFoundOrActive, func(inv *entity.Invoice) error {
		if !inv.IsDeleted() {
			return domain.NewLedgerError(domain.CodeInvoiceNotFoundOrActive, "la factura no está borrada")
		}
		inv.DeletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Volver al resumen: la factura restaurada cuenta otra vez.
	if _, err := uc.summary.Refresh(ctx, tenantID, inv.ClientID); err != nil {
		return nil, err
	}
	resp := toInvoiceResponse(inv)
	return &resp, nil
}

// GetInvoice obtiene una factura por ID (incluye borradas, para auditoría).
func (uc *LedgerUseCase) GetInvoice(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.LoadForUpdate(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
	}
	resp := toInvoiceResponse(inv)
	return &resp, nil
}

// ListInvoices lista las facturas de un cliente.
func (uc *LedgerUseCase) ListInvoices(ctx context.Context, tenantID, clientID string, includeDeleted bool) ([]dto.InvoiceResponse, error) {
	invoices, err := uc.invoiceRepo.ListByClient(ctx, tenantID, clientID, includeDeleted)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	return out, nil
}

// mutate ejecuta el ciclo optimista completo: cargar, aplicar, guardar.
// Ante ErrVersionConflict repite desde la carga (la mutación se re-aplica
// sobre el estado fresco); agotados los reintentos retorna
// CONCURRENT_UPDATE_CONFLICT. Nunca deja efectos parciales: si apply o el
// guardado fallan, nada quedó persistido.
func (uc *LedgerUseCase) mutate(ctx context.Context, tenantID, invoiceID, notFoundCode string, apply func(*entity.Invoice) error) (*entity.Invoice, error) {
	for attempt := 0; attempt <= uc.maxRetries; attempt++ {
		inv, err := uc.invoiceRepo.LoadForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, domain.NewLedgerError(notFoundCode, "factura no encontrada")
		}
		if err := apply(inv); err != nil {
			return nil, err
		}
		inv.UpdatedAt = time.Now()
		err = uc.invoiceRepo.SaveIfUnchanged(ctx, inv, inv.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			uc.log.Debug().
				Str("invoice_id", invoiceID).
				Int("attempt", attempt+1).
				Msg("conflicto de versión, reintentando mutación")
			continue
		}
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	return nil, domain.NewLedgerError(domain.CodeConcurrentConflict, "conflicto de concurrencia persistente, reintente la operación")
}

// mutationResponse refresca el resumen del cliente dueño y arma la respuesta
// estándar de mutación.
func (uc *LedgerUseCase) mutationResponse(ctx context.Context, inv *entity.Invoice) (*dto.InvoiceMutationResponse, error) {
	summary, err := uc.summary.Refresh(ctx, inv.TenantID, inv.ClientID)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceMutationResponse{
		Invoice:        toInvoiceResponse(inv),
		InvoiceSummary: toSummaryResponse(inv.ClientID, summary),
	}, nil
}

// buildPaymentEntry valida y convierte un PaymentInput en una entrada
// inmutable del ledger. paid_at por defecto es el momento de creación.
func buildPaymentEntry(invoiceID string, in dto.PaymentInput, now time.Time, exponent int32) (*entity.PaymentEntry, error) {
	amount, err := amountFromDecimal(in.Amount, exponent)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, domain.NewLedgerError(domain.CodeInvalidAmount, "el monto del abono debe ser mayor que cero")
	}
	method, err := entity.ParsePaymentMethod(in.Method)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}
	paidAt := now
	if in.PaidAt != nil {
		paidAt = *in.PaidAt
	}
	var notes entity.PaymentNotes
	if in.Notes != nil {
		notes = entity.PaymentNotes{Reason: in.Notes.Reason, Comment: in.Notes.Comment}
	}
	return &entity.PaymentEntry{
		ID:        uuid.New().String(),
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    method,
		Reference: in.Reference,
		PaidAt:    paidAt,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// amountFromDecimal convierte un decimal de entrada a unidades menores.
// Una fracción de unidad menor es un monto inválido, no se redondea.
func amountFromDecimal(d decimal.Decimal, exponent int32) (money.Money, error) {
	m, err := money.FromDecimal(d, exponent)
	if err != nil {
		return money.Zero, domain.NewLedgerError(domain.CodeInvalidAmount, err.Error())
	}
	return m, nil
}
