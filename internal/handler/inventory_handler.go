package handler

import (
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	service service.InventoryService
	loc     *time.Location
}

func NewInventoryHandler(s service.InventoryService, loc *time.Location) *InventoryHandler {
	return &InventoryHandler{service: s, loc: loc}
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	product, err := h.service.CreateProduct(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), id, &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

func (h *InventoryHandler) DeactivateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeactivateProduct(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deactivated"})
}

func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteProduct(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": product})
}

// GetProducts supports ?search&category_id&supplier_id&low_stock&active&sort&page&limit.
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	categoryID, err := queryUUID(c, "category_id")
	if err != nil {
		return err
	}
	supplierID, err := queryUUID(c, "supplier_id")
	if err != nil {
		return err
	}
	page := pageFrom(c)
	products, total, err := h.service.ListProducts(c.UserContext(), repository.ProductFilter{
		Search:     c.Query("search"),
		CategoryID: categoryID,
		SupplierID: supplierID,
		LowStock:   c.QueryBool("low_stock", false),
		ActiveOnly: c.QueryBool("active", false),
		Sort:       c.Query("sort", "-created_at"),
		Page:       page,
	})
	if err != nil {
		return err
	}
	return paginated(c, products, total, page)
}

func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	products, err := h.service.LowStockProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": products})
}

// AdjustStock records a manual stock change.
// POST /api/v1/inventory/adjust
func (h *InventoryHandler) AdjustStock(c *fiber.Ctx) error {
	var req service.AdjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	adj, err := h.service.AdjustStock(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Stock adjusted", "data": adj})
}

func (h *InventoryHandler) GetAdjustments(c *fiber.Ctx) error {
	productID, err := queryUUID(c, "product_id")
	if err != nil {
		return err
	}
	start, end, err := optionalRange(c, h.loc)
	if err != nil {
		return err
	}
	page := pageFrom(c)
	adjustments, total, err := h.service.ListAdjustments(c.UserContext(), repository.AdjustmentFilter{
		ProductID: productID,
		Type:      model.AdjustmentType(c.Query("type")),
		Start:     start,
		End:       end,
		Page:      page,
	})
	if err != nil {
		return err
	}
	return paginated(c, adjustments, total, page)
}

func (h *InventoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categories})
}

func (h *InventoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	category, err := h.service.CreateCategory(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"message": "Category created", "data": category})
}

func (h *InventoryHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	category, err := h.service.UpdateCategory(c.UserContext(), id, &req, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category updated", "data": category})
}

func (h *InventoryHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteCategory(c.UserContext(), id, actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
