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
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AggregateDelta is one change to a customer's purchase counters.
type AggregateDelta struct {
	CustomerID    uuid.UUID
	TransactionID uuid.UUID
	Purchases     int
	Spent         decimal.Decimal
	Points        int64
}

// AggregateUpdater applies customer counter deltas after a sale commits.
// Failures are queued as PendingAggregate rows and replayed by RetryPending.
type AggregateUpdater struct {
	db          *gorm.DB
	repo        repository.CustomerRepository
	maxAttempts int
	batch       int
}

func NewAggregateUpdater(db *gorm.DB, repo repository.CustomerRepository, maxAttempts int) *AggregateUpdater {
	return &AggregateUpdater{db: db, repo: repo, maxAttempts: maxAttempts, batch: 100}
}

// Apply never returns an error; the sale it belongs to is already final.
func (u *AggregateUpdater) Apply(ctx context.Context, d AggregateDelta) {
	err := u.repo.IncrementAggregates(ctx, d.CustomerID, d.Purchases, d.Spent, d.Points)
	if err == nil {
		return
	}
	if repository.IsNotFound(err) {
		zap.L().Warn("customer gone, aggregate update dropped",
			zap.String("customer_id", d.CustomerID.String()),
			zap.String("transaction_id", d.TransactionID.String()),
		)
		return
	}

	zap.L().Error("customer aggregate update failed, queued for retry",
		zap.String("customer_id", d.CustomerID.String()),
		zap.String("transaction_id", d.TransactionID.String()),
		zap.Error(err),
	)
	pending := &model.PendingAggregate{
		CustomerID:    d.CustomerID,
		TransactionID: d.TransactionID,
		Purchases:     d.Purchases,
		Spent:         d.Spent,
		Points:        d.Points,
		LastError:     err.Error(),
	}
	if qerr := u.repo.CreatePending(context.WithoutCancel(ctx), pending); qerr != nil {
		zap.L().Error("could not queue customer aggregate",
			zap.String("customer_id", d.CustomerID.String()),
			zap.String("transaction_id", d.TransactionID.String()),
			zap.Error(qerr),
		)
	}
}

// RetryPending replays queued deltas. Each delta is applied and dequeued in
// the same database transaction so it is counted exactly once. A delta that
// keeps failing is dropped after maxAttempts.
func (u *AggregateUpdater) RetryPending(ctx context.Context) (int, error) {
	pending, err := u.repo.ListPending(ctx, u.batch)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, p := range pending {
		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := u.repo.WithTx(tx)
			if err := repo.IncrementAggregates(ctx, p.CustomerID, p.Purchases, p.Spent, p.Points); err != nil {
				return err
			}
			return repo.DeletePending(ctx, p.ID)
		})
		switch {
		case err == nil:
			applied++
		case repository.IsNotFound(err):
			zap.L().Warn("customer gone, dropping queued aggregate", zap.String("customer_id", p.CustomerID.String()))
			if derr := u.repo.DeletePending(ctx, p.ID); derr != nil {
				zap.L().Error("could not drop queued aggregate", zap.Error(derr))
			}
		case u.maxAttempts > 0 && p.Attempts+1 >= u.maxAttempts:
			zap.L().Error("giving up on queued customer aggregate",
				zap.String("customer_id", p.CustomerID.String()),
				zap.String("transaction_id", p.TransactionID.String()),
				zap.Int("purchases", p.Purchases),
				zap.String("spent", p.Spent.String()),
				zap.Int64("points", p.Points),
				zap.Error(err),
			)
			if derr := u.repo.DeletePending(ctx, p.ID); derr != nil {
				zap.L().Error("could not drop queued aggregate", zap.Error(derr))
			}
		default:
			zap.L().Warn("queued aggregate still failing", zap.String("id", p.ID.String()), zap.Error(err))
			if merr := u.repo.MarkPendingFailed(ctx, p.ID, err.Error()); merr != nil {
				zap.L().Error("could not record aggregate failure", zap.Error(merr))
			}
		}
	}
	return applied, nil
}

type CustomerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
	Address  string `json:"address" validate:"omitempty,max=255"`
	IsActive *bool  `json:"is_active"`
}

func (r *CustomerRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
}

// UpdateCustomerRequest only touches the fields present in the body. The
// purchase aggregates are not settable.
type UpdateCustomerRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

func (r *UpdateCustomerRequest) normalize() {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(r.Name)
	trim(r.Email)
	trim(r.Phone)
	trim(r.Address)
	if r.Email != nil {
		*r.Email = strings.ToLower(*r.Email)
	}
}

type CustomerService interface {
	Create(ctx context.Context, req *CustomerRequest, actor event.Actor) (*model.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	List(ctx context.Context, f repository.CustomerFilter) ([]model.Customer, int64, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateCustomerRequest, actor event.Actor) (*model.Customer, error)
	Delete(ctx context.Context, id uuid.UUID, actor event.Actor) error
	History(ctx context.Context, id uuid.UUID, page repository.Page) ([]model.Transaction, int64, error)
	Top(ctx context.Context, limit int) ([]model.Customer, error)
}

type customerService struct {
	repo    repository.CustomerRepository
	trxRepo repository.TransactionRepository
	events  event.Publisher
}

func NewCustomerService(repo repository.CustomerRepository, trxRepo repository.TransactionRepository, events event.Publisher) CustomerService {
	return &customerService{repo: repo, trxRepo: trxRepo, events: events}
}

func (s *customerService) Create(ctx context.Context, req *CustomerRequest, actor event.Actor) (*model.Customer, error) {
	req.normalize()
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	c := &model.Customer{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	c.CreatedBy = actor.ID.String()
	c.UpdatedBy = actor.ID.String()
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.publish("create", c, actor, fmt.Sprintf("Created customer %s", c.Name))
	return c, nil
}

func (s *customerService) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("customer", id)
		}
		return nil, err
	}
	return c, nil
}

func (s *customerService) List(ctx context.Context, f repository.CustomerFilter) ([]model.Customer, int64, error) {
	return s.repo.List(ctx, f)
}

func (s *customerService) Update(ctx context.Context, id uuid.UUID, req *UpdateCustomerRequest, actor event.Actor) (*model.Customer, error) {
	req.normalize()
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.Name != nil && *req.Name == "" {
		return nil, apperror.Validation("name must not be empty")
	}
	fields := map[string]interface{}{"updated_by": actor.ID.String()}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Phone != nil {
		fields["phone"] = *req.Phone
	}
	if req.Address != nil {
		fields["address"] = *req.Address
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("customer", id)
		}
		return nil, err
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish("update", c, actor, fmt.Sprintf("Updated customer %s", c.Name))
	return c, nil
}

func (s *customerService) Delete(ctx context.Context, id uuid.UUID, actor event.Actor) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish("delete", c, actor, fmt.Sprintf("Deleted customer %s", c.Name))
	return nil
}

func (s *customerService) History(ctx context.Context, id uuid.UUID, page repository.Page) ([]model.Transaction, int64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.trxRepo.List(ctx, repository.TransactionFilter{CustomerID: &id, Page: page})
}

func (s *customerService) Top(ctx context.Context, limit int) ([]model.Customer, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopBySpent(ctx, limit)
}

func (s *customerService) publish(action string, c *model.Customer, actor event.Actor, desc string) {
	s.events.Publish(event.Event{
		Topic:       event.TopicCustomerChanged,
		Action:      action,
		Entity:      "customer",
		EntityID:    c.ID.String(),
		Description: desc,
		Actor:       actor,
		Data: map[string]interface{}{
			"name":  c.Name,
			"email": c.Email,
		},
	})
}
