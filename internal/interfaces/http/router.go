package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/visioncrm/optica-api/internal/application/auth"
	"github.com/visioncrm/optica-api/internal/application/billing"
	"github.com/visioncrm/optica-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	ClientUC  *billing.ClientUseCase
	SummaryUC *billing.SummaryUseCase
	LedgerUC  *billing.LedgerUseCase
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Clients (protegido)
	clients := protected.Group("/clients")
	clientHandler := NewClientHandler(deps.ClientUC, deps.SummaryUC)
	clients.Post("/", clientHandler.Create)
	clients.Get("/", clientHandler.List)
	clients.Get("/:id", clientHandler.GetByID)
	clients.Get("/:id/summary", clientHandler.Summary)

	// Invoices (protegido). Borrar y restaurar requieren rol de gestión.
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.LedgerUC)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/export.xml", invoiceHandler.ExportXML)
	invoices.Patch("/:id/totals", invoiceHandler.UpdateTotals)
	invoices.Delete("/:id", RequireRole(entity.RoleAdmin, entity.RoleRecepcion), invoiceHandler.Delete)
	invoices.Post("/:id/restore", RequireRole(entity.RoleAdmin, entity.RoleRecepcion), invoiceHandler.Restore)
	invoices.Post("/:id/payments", invoiceHandler.AddPayment)
	invoices.Delete("/:id/payments/:paymentId", invoiceHandler.DeletePayment)
}
