package service

import (
	"context"
	"testing"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func logActivity(t *testing.T, db *gorm.DB, userID *uuid.UUID, action string, at time.Time) {
	t.Helper()
	entry := &model.ActivityLog{
		UserID:      userID,
		Action:      action,
		Entity:      "transaction",
		Description: action,
		CreatedAt:   at,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("log activity: %v", err)
	}
}

func TestActivitySummaryCoversToday(t *testing.T) {
	db := testutil.OpenDB(t)
	ani := testutil.SeedUser(t, db, model.RoleCashier)
	budi := testutil.SeedUser(t, db, model.RoleManager)
	yesterday := saleDay.AddDate(0, 0, -1)

	logActivity(t, db, &ani.ID, "create", saleDay)
	logActivity(t, db, &ani.ID, "create", saleDay.Add(time.Minute))
	logActivity(t, db, &ani.ID, "cancel", saleDay.Add(2*time.Minute))
	logActivity(t, db, &budi.ID, "update", saleDay)
	logActivity(t, db, nil, "low_stock", saleDay)
	logActivity(t, db, &budi.ID, "delete", yesterday)

	svc := NewActivityService(repository.NewActivityRepo(db), time.UTC, func() time.Time { return saleDay })
	summary, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Date != "2024-01-31" {
		t.Fatalf("unexpected date %s", summary.Date)
	}

	counts := map[string]int64{}
	for _, c := range summary.ByAction {
		counts[c.Action] = c.Count
	}
	if len(counts) != 4 || counts["create"] != 2 || counts["delete"] != 0 || counts["low_stock"] != 1 {
		t.Fatalf("unexpected action counts %v", counts)
	}
	if summary.ByAction[0].Action != "create" {
		t.Fatalf("expected the busiest action first, got %s", summary.ByAction[0].Action)
	}

	if len(summary.ActiveUsers) != 2 {
		t.Fatalf("expected two active users, got %d", len(summary.ActiveUsers))
	}
	top := summary.ActiveUsers[0]
	if top.UserID != ani.ID || top.Count != 3 || top.Role != model.RoleCashier || top.Email != ani.Email {
		t.Fatalf("unexpected top user %+v", top)
	}
}

func TestUserActivityPermissions(t *testing.T) {
	db := testutil.OpenDB(t)
	ani := testutil.SeedUser(t, db, model.RoleCashier)
	budi := testutil.SeedUser(t, db, model.RoleCashier)
	logActivity(t, db, &ani.ID, "create", saleDay)
	logActivity(t, db, &ani.ID, "cancel", saleDay.Add(time.Minute))
	logActivity(t, db, &budi.ID, "create", saleDay)

	svc := NewActivityService(repository.NewActivityRepo(db), time.UTC, nil)

	own, err := svc.UserActivity(context.Background(), ani.ID, ani.ID, model.RoleCashier)
	if err != nil {
		t.Fatalf("own activity: %v", err)
	}
	if len(own) != 2 || own[0].Action != "cancel" {
		t.Fatalf("expected own entries newest first, got %d", len(own))
	}

	if _, err := svc.UserActivity(context.Background(), ani.ID, budi.ID, model.RoleCashier); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Fatalf("expected a cashier to be refused another user's activity, got %v", err)
	}
	if got, err := svc.UserActivity(context.Background(), ani.ID, uuid.New(), model.RoleManager); err != nil || len(got) != 2 {
		t.Fatalf("expected a manager to read it, got %d %v", len(got), err)
	}
}
