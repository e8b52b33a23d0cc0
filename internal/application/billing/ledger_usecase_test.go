package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioncrm/optica-api/internal/application/billing"
	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria — respetan el contrato optimista del puerto
// ──────────────────────────────────────────────────────────────────────────────

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
	counters map[string]int64
	// failSaves fuerza N conflictos de versión consecutivos en SaveIfUnchanged,
	// para ejercitar los reintentos del ledger.
	failSaves int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[string]*entity.Invoice),
		counters: make(map[string]int64),
	}
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	cp := *inv
	cp.Payments = make([]*entity.PaymentEntry, len(inv.Payments))
	for i, p := range inv.Payments {
		cp.Payments[i] = p.Clone()
	}
	if inv.DeletedAt != nil {
		d := *inv.DeletedAt
		cp.DeletedAt = &d
	}
	return &cp
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.Version = 1
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) NextInvoiceNumber(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[tenantID]++
	return r.counters[tenantID], nil
}

func (r *fakeInvoiceRepo) LoadForUpdate(_ context.Context, tenantID, invoiceID string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *fakeInvoiceRepo) SaveIfUnchanged(_ context.Context, inv *entity.Invoice, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaves > 0 {
		r.failSaves--
		return domain.ErrVersionConflict
	}
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	cp := cloneInvoice(inv)
	cp.Version = expectedVersion + 1
	r.invoices[inv.ID] = cp
	inv.Version = cp.Version
	return nil
}

func (r *fakeInvoiceRepo) HardDelete(_ context.Context, tenantID, invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return domain.ErrNotFound
	}
	delete(r.invoices, invoiceID)
	return nil
}

func (r *fakeInvoiceRepo) ListByClient(_ context.Context, tenantID, clientID string, includeDeleted bool) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID || inv.ClientID != clientID {
			continue
		}
		if inv.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	return out, nil
}

func (r *fakeInvoiceRepo) SummarizeClient(_ context.Context, tenantID, clientID string) (*entity.ClientInvoiceSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &entity.ClientInvoiceSummary{}
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID || inv.ClientID != clientID || inv.IsDeleted() {
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(inv.TotalAmount)
		s.DueAmount = s.DueAmount.Add(inv.RemainingAmount)
		s.Currency = inv.Currency
		s.InvoiceCount++
		if s.LastInvoiceAt == nil || inv.CreatedAt.After(*s.LastInvoiceAt) {
			created := inv.CreatedAt
			s.LastInvoiceAt = &created
		}
	}
	return s, nil
}

type fakeClientRepo struct {
	mu        sync.Mutex
	clients   map[string]*entity.Client
	summaries map[string]*entity.ClientInvoiceSummary
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{
		clients:   make(map[string]*entity.Client),
		summaries: make(map[string]*entity.ClientInvoiceSummary),
	}
}

func (r *fakeClientRepo) Create(c *entity.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *fakeClientRepo) GetByID(tenantID, id string) (*entity.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	return c, nil
}

func (r *fakeClientRepo) GetByTenantAndDocument(tenantID, documentID string) (*entity.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.TenantID == tenantID && c.DocumentID == documentID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeClientRepo) ListByTenant(tenantID string, limit, offset int) ([]*entity.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Client
	for _, c := range r.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) Update(c *entity.Client) error { return nil }

func (r *fakeClientRepo) UpdateInvoiceSummary(tenantID, clientID string, s *entity.ClientInvoiceSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[clientID] = s
	return nil
}

type fakeTenantRepo struct {
	tenants map[string]*entity.Tenant
}

func (r *fakeTenantRepo) Create(t *entity.Tenant) error { r.tenants[t.ID] = t; return nil }
func (r *fakeTenantRepo) GetByID(id string) (*entity.Tenant, error) {
	return r.tenants[id], nil
}
func (r *fakeTenantRepo) List(limit, offset int) ([]*entity.Tenant, error) { return nil, nil }

// ──────────────────────────────────────────────────────────────────────────────
// Harness
// ──────────────────────────────────────────────────────────────────────────────

const (
	testTenant = "tenant-1"
	testClient = "client-1"
)

type ledgerHarness struct {
	uc          *billing.LedgerUseCase
	invoiceRepo *fakeInvoiceRepo
	clientRepo  *fakeClientRepo
}

func newLedgerHarness(t *testing.T, maxRetries int) *ledgerHarness {
	t.Helper()
	invoiceRepo := newFakeInvoiceRepo()
	clientRepo := newFakeClientRepo()
	tenantRepo := &fakeTenantRepo{tenants: map[string]*entity.Tenant{
		testTenant: {ID: testTenant, Name: "Óptica Central", Currency: "EUR", Status: "active"},
	}}
	require.NoError(t, clientRepo.Create(&entity.Client{
		ID: testClient, TenantID: testTenant, Name: "Ana Pérez", DocumentID: "12345678A",
	}))
	log := logger.Nop()
	summary := billing.NewSummaryUseCase(invoiceRepo, clientRepo, log)
	uc := billing.NewLedgerUseCase(invoiceRepo, clientRepo, tenantRepo, summary, maxRetries, log)
	return &ledgerHarness{uc: uc, invoiceRepo: invoiceRepo, clientRepo: clientRepo}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *ledgerHarness) createInvoice(t *testing.T, req dto.CreateInvoiceRequest) *dto.InvoiceMutationResponse {
	t.Helper()
	if req.ClientID == "" {
		req.ClientID = testClient
	}
	out, err := h.uc.CreateInvoice(context.Background(), testTenant, req)
	require.NoError(t, err)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateInvoice
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateInvoice_ConAbonosIniciales(t *testing.T) {
	h := newLedgerHarness(t, 0)
	out := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount: dec("1000.00"),
		InitialPayments: []dto.PaymentInput{
			{Amount: dec("300.00"), Method: "cash"},
			{Amount: dec("200.00"), Method: "card"},
		},
	})

	inv := out.Invoice
	assert.Equal(t, int64(1), inv.InvoiceNumber)
	assert.Equal(t, "EUR", inv.Currency, "sin moneda explícita hereda la del tenant")
	assert.Equal(t, "partial", inv.Status)
	assert.True(t, inv.AdvanceAmount.Equal(dec("500.00")))
	assert.True(t, inv.RemainingAmount.Equal(dec("500.00")))
	assert.Len(t, inv.Payments, 2)

	// El resumen del cliente se refresca en la misma respuesta.
	assert.Equal(t, 1, out.InvoiceSummary.InvoiceCount)
	assert.True(t, out.InvoiceSummary.DueAmount.Equal(dec("500.00")))
}

func TestCreateInvoice_AdvanceLegadoSeVuelveAbono(t *testing.T) {
	h := newLedgerHarness(t, 0)
	out := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:   dec("500.00"),
		AdvanceAmount: dec("150.00"),
	})

	inv := out.Invoice
	require.Len(t, inv.Payments, 1, "el advance legado se materializa como abono")
	assert.True(t, inv.Payments[0].Amount.Equal(dec("150.00")))
	require.NotNil(t, inv.Payments[0].Notes)
	assert.Equal(t, "saldo_inicial", inv.Payments[0].Notes.Reason)
	assert.True(t, inv.AdvanceAmount.Equal(dec("150.00")))
	assert.Equal(t, "partial", inv.Status)
}

func TestCreateInvoice_MonedaSinDecimales(t *testing.T) {
	h := newLedgerHarness(t, 0)
	out := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("1000"),
		Currency:        "JPY",
		InitialPayments: []dto.PaymentInput{{Amount: dec("600"), Method: "cash"}},
	})

	// En JPY la unidad menor es el yen entero: 1000 son 1000 unidades
	// menores, no 100000, y el resumen vuelve con la misma escala.
	inv := out.Invoice
	assert.Equal(t, "JPY", inv.Currency)
	assert.True(t, inv.RemainingAmount.Equal(dec("400")), "remaining=%s", inv.RemainingAmount)
	assert.Equal(t, "JPY", out.InvoiceSummary.Currency)
	assert.True(t, out.InvoiceSummary.TotalAmount.Equal(dec("1000")), "total=%s", out.InvoiceSummary.TotalAmount)
	assert.True(t, out.InvoiceSummary.DueAmount.Equal(dec("400")), "due=%s", out.InvoiceSummary.DueAmount)

	// Una fracción de yen se rechaza, nunca se redondea.
	_, err := h.uc.CreateInvoice(context.Background(), testTenant, dto.CreateInvoiceRequest{
		ClientID: testClient, TotalAmount: dec("1000.50"), Currency: "JPY",
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvalidAmount))
}

func TestAddPayment_ExcedeSaldo_MonedaSinDecimales(t *testing.T) {
	h := newLedgerHarness(t, 0)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("1000"),
		Currency:        "JPY",
		InitialPayments: []dto.PaymentInput{{Amount: dec("600")}},
	})

	_, err := h.uc.AddPayment(context.Background(), testTenant, created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("401")},
	})
	var le *domain.LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, domain.CodePaymentExceedsRemaining, le.Code)
	assert.Equal(t, "JPY", le.Currency)
	require.NotNil(t, le.Remaining)
	assert.Equal(t, int64(400), le.Remaining.MinorUnits(), "400 yenes pendientes, no 4")
}

func TestCreateInvoice_NumeracionConsecutivaPorTenant(t *testing.T) {
	h := newLedgerHarness(t, 0)
	first := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})
	second := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("200.00")})

	assert.Equal(t, int64(1), first.Invoice.InvoiceNumber)
	assert.Equal(t, int64(2), second.Invoice.InvoiceNumber)
}

func TestCreateInvoice_Rechazos(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()

	// Cliente inexistente.
	_, err := h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID: "no-such", TotalAmount: dec("100.00"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Total en cero.
	_, err = h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID: testClient, TotalAmount: dec("0"),
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvalidAmount))

	// Fracción de céntimo: nunca se redondea.
	_, err = h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID: testClient, TotalAmount: dec("100.005"),
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvalidAmount))

	// Abonos iniciales que exceden el total.
	_, err = h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID:    testClient,
		TotalAmount: dec("100.00"),
		InitialPayments: []dto.PaymentInput{
			{Amount: dec("60.00")}, {Amount: dec("60.00")},
		},
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodePaymentExceedsTotal))

	// Abonos más crédito exceden el total.
	_, err = h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID:        testClient,
		TotalAmount:     dec("100.00"),
		CreditAmount:    dec("50.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("60.00")}},
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodePaymentExceedsTotal))

	// Método de pago desconocido.
	_, err = h.uc.CreateInvoice(ctx, testTenant, dto.CreateInvoiceRequest{
		ClientID:        testClient,
		TotalAmount:     dec("100.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("10.00"), Method: "bitcoin"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// AddPayment / DeletePayment
// ──────────────────────────────────────────────────────────────────────────────

func TestAddPayment_HastaPagarYCorregir(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("1000.00")})
	invID := created.Invoice.ID

	out, err := h.uc.AddPayment(ctx, testTenant, invID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("300.00"), Method: "cash"},
	})
	require.NoError(t, err)
	assert.Equal(t, "partial", out.Invoice.Status)

	out, err = h.uc.AddPayment(ctx, testTenant, invID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("400.00"), Method: "card"},
	})
	require.NoError(t, err)

	out, err = h.uc.AddPayment(ctx, testTenant, invID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("300.00"), Method: "transfer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", out.Invoice.Status)
	assert.True(t, out.Invoice.RemainingAmount.IsZero())
	assert.True(t, out.InvoiceSummary.DueAmount.IsZero())

	// Corregir: borrar el abono de 400 retrocede el estado.
	var cardPaymentID string
	for _, p := range out.Invoice.Payments {
		if p.Method == "card" {
			cardPaymentID = p.ID
		}
	}
	require.NotEmpty(t, cardPaymentID)

	out, err = h.uc.DeletePayment(ctx, testTenant, invID, cardPaymentID)
	require.NoError(t, err)
	assert.Equal(t, "partial", out.Invoice.Status)
	assert.True(t, out.Invoice.AdvanceAmount.Equal(dec("600.00")))
	assert.True(t, out.Invoice.RemainingAmount.Equal(dec("400.00")))
	assert.True(t, out.InvoiceSummary.DueAmount.Equal(dec("400.00")))
}

func TestAddPayment_ExcedeSaldo_IncluyeSaldoVigente(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("100.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("60.00")}},
	})

	_, err := h.uc.AddPayment(ctx, testTenant, created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("40.01")},
	})
	require.Error(t, err)

	var le *domain.LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, domain.CodePaymentExceedsRemaining, le.Code)
	require.NotNil(t, le.Remaining)
	assert.Equal(t, int64(4000), le.Remaining.MinorUnits())
	assert.Equal(t, "EUR", le.Currency, "el rechazo lleva la moneda de la factura")
}

func TestDeletePayment_NoExiste(t *testing.T) {
	h := newLedgerHarness(t, 0)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})

	_, err := h.uc.DeletePayment(context.Background(), testTenant, created.Invoice.ID, "no-such")
	assert.True(t, domain.IsLedgerCode(err, domain.CodePaymentNotFound))
}

func TestAddPayment_FacturaDeOtroTenant(t *testing.T) {
	h := newLedgerHarness(t, 0)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})

	// Desde otro tenant la factura simplemente no existe.
	_, err := h.uc.AddPayment(context.Background(), "otro-tenant", created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("10.00")},
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvoiceNotFound))
}

// ──────────────────────────────────────────────────────────────────────────────
// UpdateInvoiceTotals
// ──────────────────────────────────────────────────────────────────────────────

func TestUpdateInvoiceTotals(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("100.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("60.00")}},
	})
	invID := created.Invoice.ID

	// Subir el total reabre saldo.
	newTotal := dec("150.00")
	out, err := h.uc.UpdateInvoiceTotals(ctx, testTenant, invID, dto.UpdateInvoiceTotalsRequest{
		TotalAmount: &newTotal,
	})
	require.NoError(t, err)
	assert.True(t, out.Invoice.RemainingAmount.Equal(dec("90.00")))

	// Bajar por debajo de lo abonado se rechaza.
	lowTotal := dec("50.00")
	_, err = h.uc.UpdateInvoiceTotals(ctx, testTenant, invID, dto.UpdateInvoiceTotalsRequest{
		TotalAmount: &lowTotal,
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeTotalBelowPaid))

	// El crédito puede dejarla pagada.
	credit := dec("90.00")
	out, err = h.uc.UpdateInvoiceTotals(ctx, testTenant, invID, dto.UpdateInvoiceTotalsRequest{
		CreditAmount: &credit,
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", out.Invoice.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Borrado lógico, restauración y borrado físico
// ──────────────────────────────────────────────────────────────────────────────

func TestDeleteInvoice_LogicoSaleDelResumen(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	first := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})
	h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("200.00")})

	out, err := h.uc.DeleteInvoice(ctx, testTenant, first.Invoice.ID, true, false)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.False(t, out.HardDeleted)
	assert.Equal(t, 1, out.InvoiceSummary.InvoiceCount, "la borrada no cuenta")
	assert.True(t, out.InvoiceSummary.DueAmount.Equal(dec("200.00")))

	// Sigue siendo legible para auditoría, pero no mutable.
	got, err := h.uc.GetInvoice(ctx, testTenant, first.Invoice.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, err = h.uc.AddPayment(ctx, testTenant, first.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("10.00")},
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvoiceNotFound))

	// No aparece en el listado por defecto; sí con include_deleted.
	list, err := h.uc.ListInvoices(ctx, testTenant, testClient, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = h.uc.ListInvoices(ctx, testTenant, testClient, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRestoreInvoice(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})
	invID := created.Invoice.ID

	// Restaurar una activa se rechaza con su código propio.
	_, err := h.uc.RestoreInvoice(ctx, testTenant, invID)
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvoiceNotFoundOrActive))

	_, err = h.uc.DeleteInvoice(ctx, testTenant, invID, true, false)
	require.NoError(t, err)

	restored, err := h.uc.RestoreInvoice(ctx, testTenant, invID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	// Vuelve a contar en el resumen.
	summary, err := h.invoiceRepo.SummarizeClient(ctx, testTenant, testClient)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InvoiceCount)
}

func TestDeleteInvoice_Fisico(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("100.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("50.00")}},
	})

	out, err := h.uc.DeleteInvoice(ctx, testTenant, created.Invoice.ID, true, true)
	require.NoError(t, err)
	assert.True(t, out.HardDeleted)
	assert.Equal(t, 0, out.InvoiceSummary.InvoiceCount)

	_, err = h.uc.GetInvoice(ctx, testTenant, created.Invoice.ID)
	assert.True(t, domain.IsLedgerCode(err, domain.CodeInvoiceNotFound))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia optimista
// ──────────────────────────────────────────────────────────────────────────────

func TestMutacion_ReintentaTrasConflicto(t *testing.T) {
	h := newLedgerHarness(t, 3)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})

	// Un conflicto transitorio: el segundo intento debe pasar.
	h.invoiceRepo.failSaves = 1
	out, err := h.uc.AddPayment(context.Background(), testTenant, created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("30.00")},
	})
	require.NoError(t, err)
	assert.True(t, out.Invoice.AdvanceAmount.Equal(dec("30.00")))
	assert.Len(t, out.Invoice.Payments, 1, "el reintento no duplica el abono")
}

func TestMutacion_ConflictoPersistenteSeRinde(t *testing.T) {
	h := newLedgerHarness(t, 2)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})

	h.invoiceRepo.failSaves = 100
	_, err := h.uc.AddPayment(context.Background(), testTenant, created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("30.00")},
	})
	assert.True(t, domain.IsLedgerCode(err, domain.CodeConcurrentConflict))
}

// Dos abonos concurrentes de 60 sobre un total de 100: exactamente uno gana;
// el perdedor reintenta contra el estado fresco y se rechaza por saldo.
func TestAddPayment_ConcurrenteNoSobrepasaElTotal(t *testing.T) {
	h := newLedgerHarness(t, 3)
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})
	invID := created.Invoice.ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.uc.AddPayment(context.Background(), testTenant, invID, dto.AddPaymentRequest{
				PaymentInput: dto.PaymentInput{Amount: dec("60.00")},
			})
		}(i)
	}
	wg.Wait()

	var okCount, exceedCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case domain.IsLedgerCode(err, domain.CodePaymentExceedsRemaining):
			exceedCount++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, okCount, "exactamente un abono debe entrar")
	assert.Equal(t, 1, exceedCount, "el otro debe rechazarse por saldo")

	final, err := h.uc.GetInvoice(context.Background(), testTenant, invID)
	require.NoError(t, err)
	assert.True(t, final.AdvanceAmount.Equal(dec("60.00")))
	assert.Len(t, final.Payments, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Resumen del cliente
// ──────────────────────────────────────────────────────────────────────────────

func TestSummary_RecomputoCompleto(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()

	h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("100.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("100.00")}},
	})
	h.createInvoice(t, dto.CreateInvoiceRequest{
		TotalAmount:     dec("200.00"),
		InitialPayments: []dto.PaymentInput{{Amount: dec("50.00")}},
	})

	summary := billing.NewSummaryUseCase(h.invoiceRepo, h.clientRepo, logger.Nop())
	got, err := summary.Get(ctx, testTenant, testClient)
	require.NoError(t, err)
	assert.Equal(t, 2, got.InvoiceCount)
	assert.Equal(t, int64(30000), got.TotalAmount.MinorUnits())
	assert.Equal(t, int64(15000), got.DueAmount.MinorUnits())
	require.NotNil(t, got.LastInvoiceAt)

	// El caché de la fila del cliente quedó reescrito.
	cached, ok := h.clientRepo.summaries[testClient]
	require.True(t, ok)
	assert.Equal(t, 2, cached.InvoiceCount)

	_, err = summary.Get(ctx, testTenant, "no-such")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummary_DespuesDeMutacionesEncadenadas(t *testing.T) {
	h := newLedgerHarness(t, 0)
	ctx := context.Background()
	created := h.createInvoice(t, dto.CreateInvoiceRequest{TotalAmount: dec("100.00")})

	out, err := h.uc.AddPayment(ctx, testTenant, created.Invoice.ID, dto.AddPaymentRequest{
		PaymentInput: dto.PaymentInput{Amount: dec("100.00"), PaidAt: timePtr(time.Now())},
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", out.Invoice.Status)
	assert.True(t, out.InvoiceSummary.DueAmount.IsZero())

	del, err := h.uc.DeleteInvoice(ctx, testTenant, created.Invoice.ID, true, false)
	require.NoError(t, err)
	assert.Equal(t, 0, del.InvoiceSummary.InvoiceCount)
}

func timePtr(t time.Time) *time.Time { return &t }
