package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/db"
	"github.com/tiker-app/tiker/internal/models"
)

func newTestQuota(t *testing.T, max int) (*DailyQuota, *gorm.DB, *time.Time) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quota-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	quota := NewDailyQuota(conn, func() time.Time { return now }, func() int { return max })
	return quota, conn, &now
}

func TestDailyQuotaReserveUntilExhausted(t *testing.T) {
	quota, _, _ := newTestQuota(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, errReserve := quota.CheckAndReserve(ctx, 1)
		if errReserve != nil {
			t.Fatalf("reserve %d: %v", i, errReserve)
		}
		if !result.Allowed {
			t.Fatalf("reserve %d denied, want allowed", i)
		}
		if want := 3 - i - 1; result.Remaining != want {
			t.Fatalf("reserve %d remaining = %d, want %d", i, result.Remaining, want)
		}
	}

	result, errFourth := quota.CheckAndReserve(ctx, 1)
	if errFourth != nil {
		t.Fatalf("fourth reserve: %v", errFourth)
	}
	if result.Allowed {
		t.Fatalf("fourth reserve allowed, want denied")
	}
	if want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC); !result.ResetsAt.Equal(want) {
		t.Fatalf("resets at %v, want next UTC midnight %v", result.ResetsAt, want)
	}
}

func TestDailyQuotaAccountsAreIndependent(t *testing.T) {
	quota, _, _ := newTestQuota(t, 1)
	ctx := context.Background()

	if result, _ := quota.CheckAndReserve(ctx, 1); !result.Allowed {
		t.Fatalf("account 1 denied, want allowed")
	}
	if result, _ := quota.CheckAndReserve(ctx, 2); !result.Allowed {
		t.Fatalf("account 2 denied, want allowed")
	}
	if result, _ := quota.CheckAndReserve(ctx, 1); result.Allowed {
		t.Fatalf("account 1 second reserve allowed, want denied")
	}
}

func TestDailyQuotaReleaseRestores(t *testing.T) {
	quota, _, _ := newTestQuota(t, 1)
	ctx := context.Background()

	if result, _ := quota.CheckAndReserve(ctx, 1); !result.Allowed {
		t.Fatalf("reserve denied, want allowed")
	}
	if result, _ := quota.CheckAndReserve(ctx, 1); result.Allowed {
		t.Fatalf("second reserve allowed, want denied")
	}

	if errRelease := quota.Release(ctx, 1); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	if result, _ := quota.CheckAndReserve(ctx, 1); !result.Allowed {
		t.Fatalf("reserve after release denied, want allowed")
	}
}

func TestDailyQuotaCommitCountsSubmission(t *testing.T) {
	quota, conn, _ := newTestQuota(t, 3)
	ctx := context.Background()

	if _, errReserve := quota.CheckAndReserve(ctx, 1); errReserve != nil {
		t.Fatalf("reserve: %v", errReserve)
	}
	if errCommit := quota.Commit(ctx, 1); errCommit != nil {
		t.Fatalf("commit: %v", errCommit)
	}

	var window models.SubmissionWindow
	if errFind := conn.Where("account_id = ? AND day = ?", 1, "2026-03-10").First(&window).Error; errFind != nil {
		t.Fatalf("load window: %v", errFind)
	}
	if window.Reserved != 1 || window.Count != 1 {
		t.Fatalf("window reserved=%d count=%d, want 1/1", window.Reserved, window.Count)
	}
}

func TestDailyQuotaResetsNextDay(t *testing.T) {
	quota, _, now := newTestQuota(t, 1)
	ctx := context.Background()

	if result, _ := quota.CheckAndReserve(ctx, 1); !result.Allowed {
		t.Fatalf("reserve denied, want allowed")
	}
	if result, _ := quota.CheckAndReserve(ctx, 1); result.Allowed {
		t.Fatalf("second reserve allowed, want denied")
	}

	*now = now.Add(24 * time.Hour)
	status, errStatus := quota.Status(ctx, 1)
	if errStatus != nil {
		t.Fatalf("status: %v", errStatus)
	}
	if !status.Allowed || status.Remaining != 1 {
		t.Fatalf("next-day status = %+v, want full quota", status)
	}
	if result, _ := quota.CheckAndReserve(ctx, 1); !result.Allowed {
		t.Fatalf("next-day reserve denied, want allowed")
	}
}

func TestDailyQuotaStatusWithoutWindow(t *testing.T) {
	quota, _, _ := newTestQuota(t, 3)

	status, errStatus := quota.Status(context.Background(), 1)
	if errStatus != nil {
		t.Fatalf("status: %v", errStatus)
	}
	if !status.Allowed || status.Remaining != 3 {
		t.Fatalf("status = %+v, want untouched quota of 3", status)
	}
}
