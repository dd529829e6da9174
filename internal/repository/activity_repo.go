package repository

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityFilter struct {
	UserID *uuid.UUID
	Entity string
	Action string
	Start  *time.Time
	End    *time.Time
	Page   Page
}

// ActionCount is how often one action was logged.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// ActiveUser is a user and how many entries they produced.
type ActiveUser struct {
	UserID uuid.UUID  `json:"user_id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Count  int64      `json:"count"`
}

type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	List(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, int64, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityLog, error)
	CountByAction(ctx context.Context, since time.Time) ([]ActionCount, error)
	MostActiveUsers(ctx context.Context, since time.Time, limit int) ([]ActiveUser, error)
}

type activityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) ActivityRepository {
	return &activityRepo{db}
}

func (r *activityRepo) Create(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityRepo) List(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ActivityLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at < ?", *f.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.ActivityLog
	err := q.Order("created_at DESC").Scopes(paginate(f.Page)).Find(&entries).Error
	return entries, total, err
}

func (r *activityRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	var entries []model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *activityRepo) CountByAction(ctx context.Context, since time.Time) ([]ActionCount, error) {
	var counts []ActionCount
	err := r.db.WithContext(ctx).Model(&model.ActivityLog{}).
		Select("action, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("action").
		Order("count DESC, action ASC").
		Scan(&counts).Error
	return counts, err
}

// MostActiveUsers skips system entries. Deleted users still count.
func (r *activityRepo) MostActiveUsers(ctx context.Context, since time.Time, limit int) ([]ActiveUser, error) {
	var users []ActiveUser
	err := r.db.WithContext(ctx).Table("activity_logs AS a").
		Select("a.user_id, u.name, u.email, u.role, COUNT(*) AS count").
		Joins("JOIN users AS u ON u.id = a.user_id").
		Where("a.created_at >= ?", since).
		Group("a.user_id, u.name, u.email, u.role").
		Order("count DESC, u.name ASC").
		Limit(limit).
		Scan(&users).Error
	return users, err
}
