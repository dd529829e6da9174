package handler

import (
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Inventory   *InventoryHandler
	Transaction *TransactionHandler
	Customer    *CustomerHandler
	Supplier    *SupplierHandler
	Report      *ReportHandler
	Activity    *ActivityHandler
}

// RegisterRoutes mounts the REST API under /api/v1 and the live feed on /ws.
func RegisterRoutes(app *fiber.App, h Handlers, auth middleware.Authenticator, hub *ws.Hub) {
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	authGroup := api.Group("/auth")
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/validate-token", h.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(auth))
	managers := middleware.RequireRole(model.RoleAdmin, model.RoleManager)
	admins := middleware.RequireRole(model.RoleAdmin)

	protected.Get("/auth/me", h.Auth.Me)
	protected.Post("/auth/change-password", h.Auth.ChangePassword)
	protected.Post("/auth/logout", h.Auth.Logout)

	// Products
	protected.Get("/products", h.Inventory.GetProducts)
	protected.Get("/products/low-stock", h.Inventory.LowStock)
	protected.Get("/products/:id", h.Inventory.GetProduct)
	protected.Post("/products", managers, h.Inventory.CreateProduct)
	protected.Put("/products/:id", managers, h.Inventory.UpdateProduct)
	protected.Patch("/products/:id/deactivate", managers, h.Inventory.DeactivateProduct)
	protected.Delete("/products/:id", admins, h.Inventory.DeleteProduct)

	// Categories
	protected.Get("/categories", h.Inventory.GetCategories)
	protected.Post("/categories", managers, h.Inventory.CreateCategory)
	protected.Put("/categories/:id", managers, h.Inventory.UpdateCategory)
	protected.Delete("/categories/:id", managers, h.Inventory.DeleteCategory)

	// Inventory
	protected.Post("/inventory/adjust", managers, h.Inventory.AdjustStock)
	protected.Get("/inventory/adjustments", h.Inventory.GetAdjustments)
	protected.Get("/inventory/overview", h.Report.InventoryOverview)
	protected.Get("/inventory/reorder", h.Report.Reorder)

	// Transactions
	protected.Post("/transactions", h.Transaction.Create)
	protected.Get("/transactions", h.Transaction.List)
	protected.Get("/transactions/number/:number", h.Transaction.GetByNumber)
	protected.Get("/transactions/:id", h.Transaction.Get)
	protected.Put("/transactions/:id/cancel", managers, h.Transaction.Cancel)

	// Customers
	protected.Get("/customers", h.Customer.List)
	protected.Get("/customers/top", h.Customer.Top)
	protected.Get("/customers/:id", h.Customer.Get)
	protected.Get("/customers/:id/transactions", h.Customer.History)
	protected.Post("/customers", h.Customer.Create)
	protected.Put("/customers/:id", h.Customer.Update)
	protected.Delete("/customers/:id", managers, h.Customer.Delete)

	// Reports
	reports := protected.Group("/reports")
	reports.Get("/daily", h.Report.Daily)
	reports.Get("/sales", h.Report.Sales)
	reports.Get("/top-products", h.Report.TopProducts)
	reports.Get("/revenue-by-category", h.Report.RevenueByCategory)
	reports.Get("/dashboard", h.Report.Dashboard)
	reports.Get("/transactions.csv", managers, h.Report.ExportCSV)

	// Suppliers
	protected.Get("/suppliers", h.Supplier.List)
	protected.Get("/suppliers/:id", h.Supplier.Get)
	protected.Post("/suppliers", managers, h.Supplier.Create)
	protected.Put("/suppliers/:id", managers, h.Supplier.Update)
	protected.Delete("/suppliers/:id", admins, h.Supplier.Delete)

	// Audit trail
	protected.Get("/activity", admins, h.Activity.List)
	protected.Get("/activity/summary", managers, h.Activity.Summary)
	protected.Get("/activity/user/:id", h.Activity.UserActivity)

	// User management
	protected.Get("/users", admins, h.User.GetAllUsers)
	protected.Get("/users/:id", admins, h.User.GetUserByID)
	protected.Post("/users", admins, h.User.CreateUser)
	protected.Put("/users/:id", admins, h.User.UpdateUser)
	protected.Delete("/users/:id", admins, h.User.DeleteUser)

	// WebSocket Route
	if hub == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		hub.Register <- c
		defer func() { hub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
