package audit

import (
	"context"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Recorder turns domain events into activity log rows. A failed write is
// logged and dropped; it never reaches the operation that emitted the event.
type Recorder struct {
	repo    repository.ActivityRepository
	timeout time.Duration
}

func NewRecorder(repo repository.ActivityRepository) *Recorder {
	return &Recorder{repo: repo, timeout: 5 * time.Second}
}

// Attach subscribes the recorder to every published topic.
func (r *Recorder) Attach(bus *event.Bus) error {
	return bus.Subscribe(r.Handle, event.Topics...)
}

func (r *Recorder) Handle(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entry := &model.ActivityLog{
		Action:      e.Action,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Description: e.Description,
		IPAddress:   e.Actor.IPAddress,
		UserAgent:   e.Actor.UserAgent,
		CreatedAt:   e.At,
	}
	if e.Actor.ID != uuid.Nil {
		id := e.Actor.ID
		entry.UserID = &id
	}
	if len(e.Data) > 0 {
		entry.Changes = datatypes.JSONMap(e.Data)
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		zap.L().Warn("activity log write failed",
			zap.String("topic", e.Topic),
			zap.String("entity", e.Entity),
			zap.String("entity_id", e.EntityID),
			zap.Error(err),
		)
	}
}
