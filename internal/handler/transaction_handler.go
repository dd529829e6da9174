package handler

import (
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	service service.TransactionService
	loc     *time.Location
}

func NewTransactionHandler(s service.TransactionService, loc *time.Location) *TransactionHandler {
	return &TransactionHandler{service: s, loc: loc}
}

// Create records a sale with the caller as cashier.
// POST /api/v1/transactions
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var req service.CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	trx, err := h.service.Create(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Transaction recorded", "data": trx})
}

// Cancel reverses a completed sale.
// PUT /api/v1/transactions/:id/cancel
func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	trx, err := h.service.Cancel(c.UserContext(), id, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Transaction cancelled", "data": trx})
}

func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	trx, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": trx})
}

func (h *TransactionHandler) GetByNumber(c *fiber.Ctx) error {
	trx, err := h.service.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": trx})
}

// List supports ?start&end&cashier_id&customer_id&status&page&limit.
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	start, end, err := optionalRange(c, h.loc)
	if err != nil {
		return err
	}
	cashierID, err := queryUUID(c, "cashier_id")
	if err != nil {
		return err
	}
	customerID, err := queryUUID(c, "customer_id")
	if err != nil {
		return err
	}

	page := pageFrom(c)
	trxs, total, err := h.service.List(c.UserContext(), repository.TransactionFilter{
		Start:      start,
		End:        end,
		CashierID:  cashierID,
		CustomerID: customerID,
		Status:     model.TransactionStatus(c.Query("status")),
		Page:       page,
	})
	if err != nil {
		return err
	}
	return paginated(c, trxs, total, page)
}
