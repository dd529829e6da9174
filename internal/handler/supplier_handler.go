package handler

import (
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SupplierHandler struct {
	service service.SupplierService
}

func NewSupplierHandler(s service.SupplierService) *SupplierHandler {
	return &SupplierHandler{service: s}
}

func (h *SupplierHandler) Create(c *fiber.Ctx) error {
	var req service.CreateSupplierRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	supplier, err := h.service.Create(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Supplier created", "data": supplier})
}

func (h *SupplierHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	supplier, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": supplier})
}

// List supports ?search&active&page&limit.
func (h *SupplierHandler) List(c *fiber.Ctx) error {
	page := pageFrom(c)
	suppliers, total, err := h.service.List(c.UserContext(), repository.SupplierFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.QueryBool("active", false),
		Page:       page,
	})
	if err != nil {
		return err
	}
	return paginated(c, suppliers, total, page)
}

func (h *SupplierHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateSupplierRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	supplier, err := h.service.Update(c.UserContext(), id, &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Supplier updated", "data": supplier})
}

func (h *SupplierHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Supplier deleted"})
}
