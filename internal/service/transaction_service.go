package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

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

const defaultSequenceAttempts = 5

type TransactionLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

type CreateTransactionRequest struct {
	Items         []TransactionLine   `json:"items" validate:"required,min=1,dive"`
	CustomerID    *uuid.UUID          `json:"customer_id"`
	Discount      decimal.Decimal     `json:"discount" validate:"gte=0"`
	Tax           decimal.Decimal     `json:"tax" validate:"gte=0"`
	PaymentMethod model.PaymentMethod `json:"payment_method" validate:"required,oneof=cash card ewallet bank_transfer"`
	AmountPaid    *decimal.Decimal    `json:"amount_paid"`
	Notes         string              `json:"notes" validate:"max=500"`
}

type TransactionService interface {
	Create(ctx context.Context, req *CreateTransactionRequest, actor event.Actor) (*model.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID, actor event.Actor) (*model.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetByNumber(ctx context.Context, number string) (*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]model.Transaction, int64, error)
}

type TransactionOptions struct {
	MaxAttempts int
	Location    *time.Location
	Now         func() time.Time
}

type transactionService struct {
	db           *gorm.DB
	productRepo  repository.ProductRepository
	trxRepo      repository.TransactionRepository
	customerRepo repository.CustomerRepository
	seq          Sequencer
	aggregates   *AggregateUpdater
	events       event.Publisher

	maxAttempts int
	loc         *time.Location
	now         func() time.Time
}

func NewTransactionService(
	db *gorm.DB,
	pRepo repository.ProductRepository,
	tRepo repository.TransactionRepository,
	cRepo repository.CustomerRepository,
	seq Sequencer,
	aggregates *AggregateUpdater,
	events event.Publisher,
	opts TransactionOptions,
) TransactionService {
	s := &transactionService{
		db:           db,
		productRepo:  pRepo,
		trxRepo:      tRepo,
		customerRepo: cRepo,
		seq:          seq,
		aggregates:   aggregates,
		events:       events,
		maxAttempts:  opts.MaxAttempts,
		loc:          opts.Location,
		now:          opts.Now,
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = defaultSequenceAttempts
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// lowStockHit is a product whose stock ended at or under its threshold.
type lowStockHit struct {
	ID        uuid.UUID
	Name      string
	Stock     int
	Threshold int
}

// Create records a sale. Every item is validated and deducted inside one
// database transaction, so either the whole sale lands or nothing changes.
// A transaction number collision restarts the whole attempt.
func (s *transactionService) Create(ctx context.Context, req *CreateTransactionRequest, actor event.Actor) (*model.Transaction, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.AmountPaid != nil && req.AmountPaid.IsNegative() {
		return nil, apperror.Validation("amount_paid must not be negative")
	}

	var (
		trx  *model.Transaction
		hits []lowStockHit
		err  error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		trx, hits, err = s.createOnce(ctx, req, actor)
		if err == nil {
			break
		}
		switch {
		case apperror.IsKind(err, apperror.KindSequenceConflict):
			zap.L().Warn("transaction number collision, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case repository.IsTransient(err):
			zap.L().Warn("sale lost a lock race, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			err = apperror.Busy(err)
		default:
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	// The sale is committed; nothing below may fail it.
	if trx.CustomerID != nil {
		s.aggregates.Apply(ctx, AggregateDelta{
			CustomerID:    *trx.CustomerID,
			TransactionID: trx.ID,
			Purchases:     1,
			Spent:         trx.Total,
			Points:        LoyaltyPoints(trx.Total),
		})
	}

	s.events.Publish(event.Event{
		Topic:       event.TopicTransactionCreated,
		Action:      "create",
		Entity:      "transaction",
		EntityID:    trx.ID.String(),
		Description: fmt.Sprintf("Sale %s total %s", trx.TransactionNumber, trx.Total.StringFixed(2)),
		Actor:       actor,
		Data: map[string]interface{}{
			"transaction_number": trx.TransactionNumber,
			"total":              trx.Total.StringFixed(2),
			"items":              len(trx.Items),
			"payment_method":     trx.PaymentMethod,
		},
	})
	s.publishLowStock(hits, actor)

	return s.reload(ctx, trx)
}

func (s *transactionService) createOnce(ctx context.Context, req *CreateTransactionRequest, actor event.Actor) (*model.Transaction, []lowStockHit, error) {
	now := s.now().In(s.loc)
	var (
		trx  *model.Transaction
		hits []lowStockHit
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)
		hits = hits[:0]

		if req.CustomerID != nil {
			ok, err := s.customerRepo.WithTx(tx).Exists(ctx, *req.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NotFound("customer", *req.CustomerID)
			}
		}

		items := make([]model.TransactionItem, 0, len(req.Items))
		thresholds := make(map[uuid.UUID]int, len(req.Items))
		subtotal := decimal.Zero
		for i, line := range req.Items {
			p, err := products.FindByID(ctx, line.ProductID)
			if err != nil {
				if repository.IsNotFound(err) {
					return apperror.NotFound("product", line.ProductID)
				}
				return err
			}
			if !p.IsActive {
				return apperror.InactiveProduct(p.ID, p.Name)
			}
			if p.Stock < line.Quantity {
				return apperror.InsufficientStock(p.ID, p.Name, p.Stock, line.Quantity)
			}

			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, model.TransactionItem{
				Position:    i + 1,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    lineTotal,
			})
			thresholds[p.ID] = p.LowStockThreshold
			subtotal = subtotal.Add(lineTotal)
		}

		discount := req.Discount.Round(2)
		tax := req.Tax.Round(2)
		total := subtotal.Sub(discount).Add(tax)
		if total.IsNegative() {
			return apperror.Validation("discount %s exceeds subtotal plus tax", discount.StringFixed(2)).
				WithDetail("subtotal", subtotal.StringFixed(2))
		}

		for _, item := range lockOrder(items) {
			stock, err := products.AdjustStock(ctx, item.ProductID, -item.Quantity, 0)
			if err != nil {
				return err
			}
			if stock <= thresholds[item.ProductID] {
				hits = append(hits, lowStockHit{
					ID:        item.ProductID,
					Name:      item.ProductName,
					Stock:     stock,
					Threshold: thresholds[item.ProductID],
				})
			}
		}

		paid := total
		if req.AmountPaid != nil {
			paid = req.AmountPaid.Round(2)
		}
		change := paid.Sub(total)
		if change.IsNegative() {
			change = decimal.Zero
		}

		seq, err := s.seq.Next(ctx, tx, now)
		if err != nil {
			return err
		}

		trx = &model.Transaction{
			TransactionNumber: model.FormatTransactionNumber(now, seq),
			Items:             items,
			CustomerID:        req.CustomerID,
			Subtotal:          subtotal,
			Discount:          discount,
			Tax:               tax,
			Total:             total,
			AmountPaid:        paid,
			ChangeGiven:       change,
			PaymentMethod:     req.PaymentMethod,
			PaymentStatus:     model.PaymentPaid,
			CashierID:         actor.ID,
			Status:            model.TxCompleted,
			Notes:             req.Notes,
		}
		trx.CreatedAt = now
		trx.UpdatedAt = now
		trx.CreatedBy = actor.ID.String()
		trx.UpdatedBy = actor.ID.String()

		if err := s.trxRepo.WithTx(tx).Create(ctx, trx); err != nil {
			if repository.IsDuplicate(err) {
				return apperror.SequenceConflict(trx.TransactionNumber, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return trx, hits, nil
}

// Cancel reverses a completed sale: the status flip and every stock restore
// commit together. Lines whose product has since been deleted are skipped.
func (s *transactionService) Cancel(ctx context.Context, id uuid.UUID, actor event.Actor) (*model.Transaction, error) {
	now := s.now().In(s.loc)
	var trx *model.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trxs := s.trxRepo.WithTx(tx)
		t, err := trxs.FindByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperror.NotFound("transaction", id)
			}
			return err
		}
		switch t.Status {
		case model.TxCancelled:
			return apperror.AlreadyCancelled(t.TransactionNumber)
		case model.TxRefunded:
			return apperror.Validation("transaction %s was refunded and cannot be cancelled", t.TransactionNumber)
		}

		ok, err := trxs.MarkCancelled(ctx, id, actor.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.AlreadyCancelled(t.TransactionNumber)
		}

		products := s.productRepo.WithTx(tx)
		for _, item := range lockOrder(t.Items) {
			if _, err := products.AdjustStock(ctx, item.ProductID, item.Quantity, 0); err != nil {
				if apperror.IsKind(err, apperror.KindNotFound) {
					zap.L().Warn("product gone, stock not restored",
						zap.String("transaction", t.TransactionNumber),
						zap.String("product_id", item.ProductID.String()),
						zap.Int("quantity", item.Quantity),
					)
					continue
				}
				return err
			}
		}
		trx = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if trx.CustomerID != nil {
		s.aggregates.Apply(ctx, AggregateDelta{
			CustomerID:    *trx.CustomerID,
			TransactionID: trx.ID,
			Purchases:     -1,
			Spent:         trx.Total.Neg(),
			Points:        -LoyaltyPoints(trx.Total),
		})
	}

	s.events.Publish(event.Event{
		Topic:       event.TopicTransactionCancelled,
		Action:      "cancel",
		Entity:      "transaction",
		EntityID:    trx.ID.String(),
		Description: fmt.Sprintf("Cancelled sale %s", trx.TransactionNumber),
		Actor:       actor,
		Data: map[string]interface{}{
			"transaction_number": trx.TransactionNumber,
			"total":              trx.Total.StringFixed(2),
		},
	})

	return s.reload(ctx, trx)
}

// lockOrder returns the lines sorted by product id. Every writer takes product
// row locks in this order so two baskets sharing products cannot deadlock.
// The stored lines keep their Position order.
func lockOrder(items []model.TransactionItem) []model.TransactionItem {
	sorted := make([]model.TransactionItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ProductID[:], sorted[j].ProductID[:]) < 0
	})
	return sorted
}

func (s *transactionService) reload(ctx context.Context, trx *model.Transaction) (*model.Transaction, error) {
	fresh, err := s.trxRepo.FindByID(ctx, trx.ID)
	if err != nil {
		zap.L().Warn("reload after commit failed", zap.String("id", trx.ID.String()), zap.Error(err))
		return trx, nil
	}
	return fresh, nil
}

func (s *transactionService) publishLowStock(hits []lowStockHit, actor event.Actor) {
	for _, h := range hits {
		s.events.Publish(event.Event{
			Topic:       event.TopicStockLow,
			Action:      "low_stock",
			Entity:      "product",
			EntityID:    h.ID.String(),
			Description: fmt.Sprintf("%s is low on stock (%d left)", h.Name, h.Stock),
			Actor:       actor,
			Data: map[string]interface{}{
				"stock":     h.Stock,
				"threshold": h.Threshold,
			},
		})
	}
}

func (s *transactionService) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	trx, err := s.trxRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("transaction", id)
		}
		return nil, err
	}
	return trx, nil
}

func (s *transactionService) GetByNumber(ctx context.Context, number string) (*model.Transaction, error) {
	trx, err := s.trxRepo.FindByNumber(ctx, number)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("transaction", number)
		}
		return nil, err
	}
	return trx, nil
}

func (s *transactionService) List(ctx context.Context, f repository.TransactionFilter) ([]model.Transaction, int64, error) {
	return s.trxRepo.List(ctx, f)
}

// LoyaltyPoints awards one point per whole currency unit spent.
func LoyaltyPoints(total decimal.Decimal) int64 {
	if total.IsNegative() {
		return 0
	}
	return total.Floor().IntPart()
}
