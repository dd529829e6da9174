package service

import (
	"context"
	"fmt"
	"strings"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"
	"go-pos-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	SKU               string            `json:"sku" validate:"required,min=1,max=50"`
	Name              string            `json:"name" validate:"required,min=1,max=100"`
	Description       string            `json:"description" validate:"max=500"`
	CategoryID        *uuid.UUID        `json:"category_id"`
	SupplierID        *uuid.UUID        `json:"supplier_id"`
	Price             decimal.Decimal   `json:"price" validate:"gte=0"`
	Cost              decimal.Decimal   `json:"cost" validate:"gte=0"`
	Stock             int               `json:"stock" validate:"gte=0"`
	LowStockThreshold *int              `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	Unit              model.ProductUnit `json:"unit" validate:"omitempty,oneof=pcs kg liter box pack"`
	Barcode           string            `json:"barcode" validate:"max=64"`
	IsActive          *bool             `json:"is_active"`
}

// UpdateProductRequest has no stock field; stock only moves through sales,
// cancellations and adjustments.
type UpdateProductRequest struct {
	SKU               *string            `json:"sku" validate:"omitempty,min=1,max=50"`
	Name              *string            `json:"name" validate:"omitempty,min=1,max=100"`
	Description       *string            `json:"description" validate:"omitempty,max=500"`
	CategoryID        *uuid.UUID         `json:"category_id"`
	SupplierID        *uuid.UUID         `json:"supplier_id"` // uuid.Nil clears it
	Price             *decimal.Decimal   `json:"price" validate:"omitempty,gte=0"`
	Cost              *decimal.Decimal   `json:"cost" validate:"omitempty,gte=0"`
	LowStockThreshold *int               `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	Unit              *model.ProductUnit `json:"unit" validate:"omitempty,oneof=pcs kg liter box pack"`
	Barcode           *string            `json:"barcode" validate:"omitempty,max=64"`
	IsActive          *bool              `json:"is_active"`
}

type AdjustStockRequest struct {
	ProductID uuid.UUID            `json:"product_id" validate:"uuid_required"`
	Type      model.AdjustmentType `json:"type" validate:"required,oneof=in out adjustment damaged return"`
	Quantity  int                  `json:"quantity" validate:"gte=0"`
	Reason    string               `json:"reason" validate:"required,max=200"`
	Reference string               `json:"reference" validate:"max=100"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type InventoryService interface {
	CreateProduct(ctx context.Context, req *CreateProductRequest, actor event.Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest, actor event.Actor) (*model.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID, actor event.Actor) error
	DeleteProduct(ctx context.Context, id uuid.UUID, actor event.Actor) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, f repository.ProductFilter) ([]model.Product, int64, error)
	LowStockProducts(ctx context.Context) ([]model.Product, error)
	SweepLowStock(ctx context.Context) (int, error)

	AdjustStock(ctx context.Context, req *AdjustStockRequest, actor event.Actor) (*model.StockAdjustment, error)
	ListAdjustments(ctx context.Context, f repository.AdjustmentFilter) ([]model.StockAdjustment, int64, error)

	CreateCategory(ctx context.Context, req *CategoryRequest, actor event.Actor) (*model.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor event.Actor) (*model.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID, actor event.Actor) error
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type inventoryService struct {
	db           *gorm.DB
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	supplierRepo repository.SupplierRepository
	adjRepo      repository.AdjustmentRepository
	events       event.Publisher
}

func NewInventoryService(
	db *gorm.DB,
	pRepo repository.ProductRepository,
	cRepo repository.CategoryRepository,
	sRepo repository.SupplierRepository,
	aRepo repository.AdjustmentRepository,
	events event.Publisher,
) InventoryService {
	return &inventoryService{
		db:           db,
		productRepo:  pRepo,
		categoryRepo: cRepo,
		supplierRepo: sRepo,
		adjRepo:      aRepo,
		events:       events,
	}
}

func normalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func (s *inventoryService) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categoryRepo.FindByID(ctx, *id); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("category", *id)
		}
		return err
	}
	return nil
}

func (s *inventoryService) ensureSupplier(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.supplierRepo.FindByID(ctx, *id); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("supplier", *id)
		}
		return err
	}
	return nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, req *CreateProductRequest, actor event.Actor) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	sku := normalizeSKU(req.SKU)
	if existing, err := s.productRepo.FindBySKU(ctx, sku); err == nil && existing != nil {
		return nil, apperror.New(apperror.KindConflict, "SKU %s already exists", sku)
	} else if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	if err := s.ensureSupplier(ctx, req.SupplierID); err != nil {
		return nil, err
	}

	p := &model.Product{
		SKU:               sku,
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		SupplierID:        req.SupplierID,
		Price:             req.Price.Round(2),
		Cost:              req.Cost.Round(2),
		Stock:             req.Stock,
		LowStockThreshold: model.DefaultLowStockThreshold,
		Unit:              req.Unit,
		Barcode:           req.Barcode,
		IsActive:          req.IsActive == nil || *req.IsActive,
	}
	if req.LowStockThreshold != nil {
		p.LowStockThreshold = *req.LowStockThreshold
	}
	if p.Unit == "" {
		p.Unit = model.UnitPcs
	}
	p.CreatedBy = actor.ID.String()
	p.UpdatedBy = actor.ID.String()

	if err := s.productRepo.Create(ctx, p); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "SKU %s already exists", sku)
		}
		return nil, err
	}
	p.LowStock = p.IsLowStock()

	s.publishProduct("create", p, actor, fmt.Sprintf("%s created product '%s'", actor.Name, p.Name))
	return p, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest, actor event.Actor) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"updated_by": actor.ID.String()}
	if req.SKU != nil {
		sku := normalizeSKU(*req.SKU)
		if other, err := s.productRepo.FindBySKU(ctx, sku); err == nil && other.ID != id {
			return nil, apperror.New(apperror.KindConflict, "SKU %s already exists", sku)
		}
		fields["sku"] = sku
	}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *req.CategoryID
	}
	if req.SupplierID != nil {
		if *req.SupplierID == uuid.Nil {
			fields["supplier_id"] = nil
		} else {
			if err := s.ensureSupplier(ctx, req.SupplierID); err != nil {
				return nil, err
			}
			fields["supplier_id"] = *req.SupplierID
		}
	}
	if req.Price != nil {
		fields["price"] = req.Price.Round(2)
	}
	if req.Cost != nil {
		fields["cost"] = req.Cost.Round(2)
	}
	if req.LowStockThreshold != nil {
		fields["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.Unit != nil {
		fields["unit"] = *req.Unit
	}
	if req.Barcode != nil {
		fields["barcode"] = *req.Barcode
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	if err := s.productRepo.UpdateFields(ctx, id, fields); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "SKU already exists")
		}
		return nil, err
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishProduct("update", p, actor, fmt.Sprintf("%s updated product '%s'", actor.Name, p.Name))
	return p, nil
}

// DeactivateProduct hides a product from sale. History and stock are kept.
func (s *inventoryService) DeactivateProduct(ctx context.Context, id uuid.UUID, actor event.Actor) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	err = s.productRepo.UpdateFields(ctx, id, map[string]interface{}{
		"is_active":  false,
		"updated_by": actor.ID.String(),
	})
	if err != nil {
		return err
	}
	p.IsActive = false
	s.publishProduct("deactivate", p, actor, fmt.Sprintf("%s deactivated product '%s'", actor.Name, p.Name))
	return nil
}

// DeleteProduct removes the row for good. Past sale lines and stock
// adjustments keep their snapshot; cancelling a sale later skips the restore.
func (s *inventoryService) DeleteProduct(ctx context.Context, id uuid.UUID, actor event.Actor) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.productRepo.HardDelete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("product", id)
		}
		return err
	}
	s.publishProduct("delete", p, actor, fmt.Sprintf("%s deleted product '%s'", actor.Name, p.Name))
	return nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("product", id)
		}
		return nil, err
	}
	return p, nil
}

func (s *inventoryService) ListProducts(ctx context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	return s.productRepo.List(ctx, f)
}

func (s *inventoryService) LowStockProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.ListLowStock(ctx)
}

// SweepLowStock announces every active product at or under its threshold.
func (s *inventoryService) SweepLowStock(ctx context.Context) (int, error) {
	products, err := s.productRepo.ListLowStock(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range products {
		s.events.Publish(event.Event{
			Topic:       event.TopicStockLow,
			Action:      "low_stock",
			Entity:      "product",
			EntityID:    p.ID.String(),
			Description: fmt.Sprintf("%s is low on stock (%d left)", p.Name, p.Stock),
			Actor:       event.System,
			Data: map[string]interface{}{
				"sku":       p.SKU,
				"stock":     p.Stock,
				"threshold": p.LowStockThreshold,
			},
		})
	}
	return len(products), nil
}

// AdjustStock records a manual stock change. The product row is locked for
// the duration so PreviousStock is exactly the value the change applied to.
func (s *inventoryService) AdjustStock(ctx context.Context, req *AdjustStockRequest, actor event.Actor) (*model.StockAdjustment, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.Type != model.AdjustAbsolute && req.Quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1 for %s adjustments", req.Type)
	}

	var (
		adj     *model.StockAdjustment
		product *model.Product
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)
		p, err := products.FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperror.NotFound("product", req.ProductID)
			}
			return err
		}

		previous := p.Stock
		var delta int
		switch req.Type {
		case model.AdjustIn, model.AdjustReturn:
			delta = req.Quantity
		case model.AdjustOut, model.AdjustDamaged:
			delta = -req.Quantity
		case model.AdjustAbsolute:
			delta = req.Quantity - previous
		}

		newStock, err := products.AdjustStock(ctx, p.ID, delta, 0)
		if err != nil {
			return err
		}

		adj = &model.StockAdjustment{
			ProductID:     p.ID,
			ProductName:   p.Name,
			ProductSKU:    p.SKU,
			Type:          req.Type,
			Quantity:      req.Quantity,
			PreviousStock: previous,
			NewStock:      newStock,
			Reason:        req.Reason,
			Reference:     req.Reference,
			AdjustedBy:    actor.ID,
		}
		if err := s.adjRepo.WithTx(tx).Create(ctx, adj); err != nil {
			return err
		}
		p.Stock = newStock
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(event.Event{
		Topic:       event.TopicStockAdjusted,
		Action:      "adjust",
		Entity:      "product",
		EntityID:    product.ID.String(),
		Description: fmt.Sprintf("%s adjusted '%s' (%s %d): %d -> %d", actor.Name, product.Name, adj.Type, adj.Quantity, adj.PreviousStock, adj.NewStock),
		Actor:       actor,
		Data: map[string]interface{}{
			"adjustment_id":  adj.ID.String(),
			"type":           adj.Type,
			"quantity":       adj.Quantity,
			"previous_stock": adj.PreviousStock,
			"new_stock":      adj.NewStock,
			"reason":         adj.Reason,
		},
	})
	if product.IsLowStock() && product.IsActive {
		s.events.Publish(event.Event{
			Topic:       event.TopicStockLow,
			Action:      "low_stock",
			Entity:      "product",
			EntityID:    product.ID.String(),
			Description: fmt.Sprintf("%s is low on stock (%d left)", product.Name, product.Stock),
			Actor:       actor,
			Data: map[string]interface{}{
				"stock":     product.Stock,
				"threshold": product.LowStockThreshold,
			},
		})
	}
	return adj, nil
}

func (s *inventoryService) ListAdjustments(ctx context.Context, f repository.AdjustmentFilter) ([]model.StockAdjustment, int64, error) {
	return s.adjRepo.List(ctx, f)
}

func (s *inventoryService) CreateCategory(ctx context.Context, req *CategoryRequest, actor event.Actor) (*model.Category, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	c := &model.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	c.CreatedBy = actor.ID.String()
	c.UpdatedBy = actor.ID.String()
	if err := s.categoryRepo.Create(ctx, c); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "category %s already exists", c.Name)
		}
		return nil, err
	}
	s.publishCategory("create", c, actor)
	return c, nil
}

func (s *inventoryService) UpdateCategory(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor event.Actor) (*model.Category, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	c, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, err
	}
	c.Name = strings.TrimSpace(req.Name)
	c.Description = req.Description
	c.UpdatedBy = actor.ID.String()
	if err := s.categoryRepo.Update(ctx, c); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "category %s already exists", c.Name)
		}
		return nil, err
	}
	s.publishCategory("update", c, actor)
	return c, nil
}

func (s *inventoryService) DeleteCategory(ctx context.Context, id uuid.UUID, actor event.Actor) error {
	c, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("category", id)
		}
		return err
	}
	n, err := s.categoryRepo.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperror.New(apperror.KindConflict, "category %s still has %d products", c.Name, n)
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.publishCategory("delete", c, actor)
	return nil
}

func (s *inventoryService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.FindAll(ctx)
}

func (s *inventoryService) publishProduct(action string, p *model.Product, actor event.Actor, desc string) {
	s.events.Publish(event.Event{
		Topic:       event.TopicProductChanged,
		Action:      action,
		Entity:      "product",
		EntityID:    p.ID.String(),
		Description: desc,
		Actor:       actor,
		Data: map[string]interface{}{
			"sku":       p.SKU,
			"name":      p.Name,
			"stock":     p.Stock,
			"price":     p.Price.StringFixed(2),
			"is_active": p.IsActive,
		},
	})
}

func (s *inventoryService) publishCategory(action string, c *model.Category, actor event.Actor) {
	s.events.Publish(event.Event{
		Topic:       event.TopicCategoryChanged,
		Action:      action,
		Entity:      "category",
		EntityID:    c.ID.String(),
		Description: fmt.Sprintf("%s %sd category '%s'", actor.Name, action, c.Name),
		Actor:       actor,
		Data:        map[string]interface{}{"name": c.Name},
	})
}
