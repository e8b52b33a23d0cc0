package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/visioncrm/optica-api/internal/application/billing"
	"github.com/visioncrm/optica-api/internal/application/dto"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/money"
)

// InvoiceHandler maneja las peticiones HTTP del ledger de facturas.
type InvoiceHandler struct {
	uc *billing.LedgerUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *billing.LedgerUseCase) *InvoiceHandler {
	return &InvoiceHandler{uc: uc}
}

// Create POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "client_id es requerido"})
	}
	out, err := h.uc.CreateInvoice(c.Context(), tenantID, in)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.uc.GetInvoice(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// List GET /api/invoices?client_id=...&include_deleted=false
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	clientID := c.Query("client_id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "client_id es requerido"})
	}
	includeDeleted := c.QueryBool("include_deleted", false)
	out, err := h.uc.ListInvoices(c.Context(), tenantID, clientID, includeDeleted)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// AddPayment POST /api/invoices/:id/payments
func (h *InvoiceHandler) AddPayment(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.AddPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.AddPayment(c.Context(), tenantID, c.Params("id"), in)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// DeletePayment DELETE /api/invoices/:id/payments/:paymentId
func (h *InvoiceHandler) DeletePayment(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.uc.DeletePayment(c.Context(), tenantID, c.Params("id"), c.Params("paymentId"))
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// UpdateTotals PATCH /api/invoices/:id/totals
func (h *InvoiceHandler) UpdateTotals(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.UpdateInvoiceTotalsRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.UpdateInvoiceTotals(c.Context(), tenantID, c.Params("id"), in)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// Delete DELETE /api/invoices/:id?hard=false&cascade=true
// Por defecto borra lógicamente (deleted_at); hard=true elimina la fila.
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	hard := c.QueryBool("hard", false)
	cascade := c.QueryBool("cascade", true)
	out, err := h.uc.DeleteInvoice(c.Context(), tenantID, c.Params("id"), cascade, hard)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// Restore POST /api/invoices/:id/restore
func (h *InvoiceHandler) Restore(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.uc.RestoreInvoice(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(out)
}

// ExportXML GET /api/invoices/:id/export.xml — factura en formato UBL.
func (h *InvoiceHandler) ExportXML(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	xml, err := h.uc.ExportInvoiceXML(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeLedgerError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.Send(xml)
}

// writeLedgerError mapea errores del ledger a respuestas HTTP. Los códigos
// estables pasan tal cual; PAYMENT_EXCEEDS_REMAINING incluye en details el
// saldo pendiente autoritativo, escalado con el exponente de la moneda de la
// factura que rechazó el pago.
func writeLedgerError(c *fiber.Ctx, err error) error {
	var le *domain.LedgerError
	if errors.As(err, &le) {
		status := fiber.StatusBadRequest
		switch le.Code {
		case domain.CodeInvoiceNotFound, domain.CodePaymentNotFound, domain.CodeInvoiceNotFoundOrActive:
			status = fiber.StatusNotFound
		case domain.CodeConcurrentConflict:
			status = fiber.StatusConflict
		}
		resp := dto.ErrorResponse{Code: le.Code, Message: le.Message}
		if le.Remaining != nil {
			resp.Details = map[string]any{
				"remaining": le.Remaining.Decimal(money.Exponent(le.Currency)),
				"currency":  le.Currency,
			}
		}
		return c.Status(status).JSON(resp)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
