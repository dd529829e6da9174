package handler

import (
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CustomerHandler struct {
	service service.CustomerService
}

func NewCustomerHandler(s service.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: s}
}

func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	var req service.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	customer, err := h.service.Create(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Customer created", "data": customer})
}

func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	customer, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customer})
}

func (h *CustomerHandler) List(c *fiber.Ctx) error {
	page := pageFrom(c)
	customers, total, err := h.service.List(c.UserContext(), repository.CustomerFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.QueryBool("active", false),
		Page:       page,
	})
	if err != nil {
		return err
	}
	return paginated(c, customers, total, page)
}

func (h *CustomerHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	customer, err := h.service.Update(c.UserContext(), id, &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Customer updated", "data": customer})
}

func (h *CustomerHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Customer deleted"})
}

func (h *CustomerHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page := pageFrom(c)
	trxs, total, err := h.service.History(c.UserContext(), id, page)
	if err != nil {
		return err
	}
	return paginated(c, trxs, total, page)
}

func (h *CustomerHandler) Top(c *fiber.Ctx) error {
	customers, err := h.service.Top(c.UserContext(), queryLimit(c, 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customers})
}
