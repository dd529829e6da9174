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
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateSupplierRequest struct {
	Name         string             `json:"name" validate:"required,min=1,max=100"`
	Company      string             `json:"company" validate:"max=100"`
	Email        string             `json:"email" validate:"required,email,max=255"`
	Phone        string             `json:"phone" validate:"required,max=30"`
	Street       string             `json:"street" validate:"max=255"`
	City         string             `json:"city" validate:"max=100"`
	State        string             `json:"state" validate:"max=100"`
	ZipCode      string             `json:"zip_code" validate:"max=20"`
	Country      string             `json:"country" validate:"max=100"`
	Website      string             `json:"website" validate:"omitempty,url,max=255"`
	TaxID        string             `json:"tax_id" validate:"max=50"`
	PaymentTerms model.PaymentTerms `json:"payment_terms" validate:"omitempty,oneof=cod net15 net30 net60"`
	IsActive     *bool              `json:"is_active"`
	Notes        string             `json:"notes" validate:"max=500"`
}

func (r *CreateSupplierRequest) normalize() {
	for _, f := range []*string{&r.Name, &r.Company, &r.Email, &r.Phone, &r.Street, &r.City, &r.State, &r.ZipCode, &r.Country, &r.Website, &r.TaxID} {
		*f = strings.TrimSpace(*f)
	}
	r.Email = strings.ToLower(r.Email)
}

// UpdateSupplierRequest only touches the fields present in the body.
type UpdateSupplierRequest struct {
	Name         *string             `json:"name" validate:"omitempty,max=100"`
	Company      *string             `json:"company" validate:"omitempty,max=100"`
	Email        *string             `json:"email" validate:"omitempty,email,max=255"`
	Phone        *string             `json:"phone" validate:"omitempty,max=30"`
	Street       *string             `json:"street" validate:"omitempty,max=255"`
	City         *string             `json:"city" validate:"omitempty,max=100"`
	State        *string             `json:"state" validate:"omitempty,max=100"`
	ZipCode      *string             `json:"zip_code" validate:"omitempty,max=20"`
	Country      *string             `json:"country" validate:"omitempty,max=100"`
	Website      *string             `json:"website" validate:"omitempty,url,max=255"`
	TaxID        *string             `json:"tax_id" validate:"omitempty,max=50"`
	PaymentTerms *model.PaymentTerms `json:"payment_terms" validate:"omitempty,oneof=cod net15 net30 net60"`
	IsActive     *bool               `json:"is_active"`
	Notes        *string             `json:"notes" validate:"omitempty,max=500"`
}

// fields trims the present values and maps them to columns.
func (r *UpdateSupplierRequest) fields() map[string]interface{} {
	out := map[string]interface{}{}
	set := func(column string, v *string) {
		if v != nil {
			*v = strings.TrimSpace(*v)
			out[column] = *v
		}
	}
	set("name", r.Name)
	set("company", r.Company)
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
		out["email"] = *r.Email
	}
	set("phone", r.Phone)
	set("street", r.Street)
	set("city", r.City)
	set("state", r.State)
	set("zip_code", r.ZipCode)
	set("country", r.Country)
	set("website", r.Website)
	set("tax_id", r.TaxID)
	if r.PaymentTerms != nil {
		out["payment_terms"] = *r.PaymentTerms
	}
	if r.IsActive != nil {
		out["is_active"] = *r.IsActive
	}
	if r.Notes != nil {
		out["notes"] = *r.Notes
	}
	return out
}

type SupplierService interface {
	Create(ctx context.Context, req *CreateSupplierRequest, actor event.Actor) (*model.Supplier, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	List(ctx context.Context, f repository.SupplierFilter) ([]model.Supplier, int64, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateSupplierRequest, actor event.Actor) (*model.Supplier, error)
	Delete(ctx context.Context, id uuid.UUID, actor event.Actor) error
}

type supplierService struct {
	db     *gorm.DB
	repo   repository.SupplierRepository
	events event.Publisher
}

func NewSupplierService(db *gorm.DB, repo repository.SupplierRepository, events event.Publisher) SupplierService {
	return &supplierService{db: db, repo: repo, events: events}
}

func (s *supplierService) Create(ctx context.Context, req *CreateSupplierRequest, actor event.Actor) (*model.Supplier, error) {
	req.normalize()
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	sup := &model.Supplier{
		Name:         req.Name,
		Company:      req.Company,
		Email:        req.Email,
		Phone:        req.Phone,
		Street:       req.Street,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      req.Country,
		Website:      req.Website,
		TaxID:        req.TaxID,
		PaymentTerms: req.PaymentTerms,
		IsActive:     req.IsActive == nil || *req.IsActive,
		Notes:        req.Notes,
	}
	if sup.Country == "" {
		sup.Country = model.DefaultSupplierCountry
	}
	if sup.PaymentTerms == "" {
		sup.PaymentTerms = model.TermsNet30
	}
	sup.CreatedBy = actor.ID.String()
	sup.UpdatedBy = actor.ID.String()
	if err := s.repo.Create(ctx, sup); err != nil {
		return nil, err
	}

	s.publish("create", sup, actor, fmt.Sprintf("%s created supplier %s", actor.Name, sup.Name))
	return sup, nil
}

func (s *supplierService) Get(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	sup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("supplier", id)
		}
		return nil, err
	}
	return sup, nil
}

func (s *supplierService) List(ctx context.Context, f repository.SupplierFilter) ([]model.Supplier, int64, error) {
	return s.repo.List(ctx, f)
}

func (s *supplierService) Update(ctx context.Context, id uuid.UUID, req *UpdateSupplierRequest, actor event.Actor) (*model.Supplier, error) {
	fields := req.fields()
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	// Name, email and phone are required on a supplier and cannot be blanked.
	for _, column := range []string{"name", "email", "phone"} {
		if v, ok := fields[column]; ok && v == "" {
			return nil, apperror.Validation("%s must not be empty", column)
		}
	}
	fields["updated_by"] = actor.ID.String()

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("supplier", id)
		}
		return nil, err
	}
	sup, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish("update", sup, actor, fmt.Sprintf("%s updated supplier %s", actor.Name, sup.Name))
	return sup, nil
}

// Delete removes the supplier and clears it from its products in one
// transaction.
func (s *supplierService) Delete(ctx context.Context, id uuid.UUID, actor event.Actor) error {
	sup, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var detached int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.DetachProducts(ctx, id)
		if err != nil {
			return err
		}
		detached = n
		return repo.Delete(ctx, id)
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("supplier", id)
		}
		return err
	}
	if detached > 0 {
		zap.L().Info("supplier removed from products",
			zap.String("supplier_id", id.String()),
			zap.Int64("products", detached),
		)
	}

	s.publish("delete", sup, actor, fmt.Sprintf("%s deleted supplier %s", actor.Name, sup.Name))
	return nil
}

func (s *supplierService) publish(action string, sup *model.Supplier, actor event.Actor, desc string) {
	s.events.Publish(event.Event{
		Topic:       event.TopicSupplierChanged,
		Action:      action,
		Entity:      "supplier",
		EntityID:    sup.ID.String(),
		Description: desc,
		Actor:       actor,
		Data: map[string]interface{}{
			"name":    sup.Name,
			"company": sup.Company,
		},
	})
}
