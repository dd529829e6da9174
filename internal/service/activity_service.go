package service

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
)

const userActivityLimit = 100

// ActivitySummary covers today in the store's time zone.
type ActivitySummary struct {
	Date        string                   `json:"date"`
	ByAction    []repository.ActionCount `json:"by_action"`
	ActiveUsers []repository.ActiveUser  `json:"active_users"`
}

type ActivityService interface {
	List(ctx context.Context, f repository.ActivityFilter) ([]model.ActivityLog, int64, error)
	UserActivity(ctx context.Context, userID, callerID uuid.UUID, callerRole model.Role) ([]model.ActivityLog, error)
	Summary(ctx context.Context) (*ActivitySummary, error)
}

type activityService struct {
	repo repository.ActivityRepository
	loc  *time.Location
	now  func() time.Time
}

func NewActivityService(repo repository.ActivityRepository, loc *time.Location, now func() time.Time) ActivityService {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &activityService{repo: repo, loc: loc, now: now}
}

func (s *activityService) List(ctx context.Context, f repository.ActivityFilter) ([]model.ActivityLog, int64, error) {
	return s.repo.List(ctx, f)
}

// UserActivity returns a user's latest entries. Admins and managers may read
// anyone's; everyone else only their own.
func (s *activityService) UserActivity(ctx context.Context, userID, callerID uuid.UUID, callerRole model.Role) ([]model.ActivityLog, error) {
	if callerRole != model.RoleAdmin && callerRole != model.RoleManager && callerID != userID {
		return nil, apperror.New(apperror.KindForbidden, "not authorized to view this activity")
	}
	return s.repo.Recent(ctx, userID, userActivityLimit)
}

func (s *activityService) Summary(ctx context.Context) (*ActivitySummary, error) {
	today := StartOfDay(s.now(), s.loc)
	byAction, err := s.repo.CountByAction(ctx, today)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.MostActiveUsers(ctx, today, 5)
	if err != nil {
		return nil, err
	}
	return &ActivitySummary{
		Date:        today.Format("2006-01-02"),
		ByAction:    byAction,
		ActiveUsers: users,
	}, nil
}
