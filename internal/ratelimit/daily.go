package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tiker-app/tiker/internal/models"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyQuota enforces the per-account pattern submission quota against the
// store. The window is the UTC calendar day. Reservation and commit are two
// steps: a failed downstream write releases its reservation instead of
// consuming quota.
type DailyQuota struct {
	db    *gorm.DB
	nowFn func() time.Time
	maxFn func() int
}

// NewDailyQuota constructs a DailyQuota with default dependencies when nil.
func NewDailyQuota(db *gorm.DB, nowFn func() time.Time, maxFn func() int) *DailyQuota {
	if nowFn == nil {
		nowFn = time.Now
	}
	if maxFn == nil {
		maxFn = func() int {
			return internalsettings.IntValue(
				internalsettings.SubmissionsPerDayKey,
				internalsettings.DefaultSubmissionsPerDay,
			)
		}
	}
	return &DailyQuota{db: db, nowFn: nowFn, maxFn: maxFn}
}

// windowDay formats the UTC calendar day key.
func windowDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// windowReset returns the next UTC midnight after now.
func windowReset(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// CheckAndReserve atomically takes one reservation in today's window. The
// increment is a single conditional update, so two concurrent submissions
// cannot both pass the check at the quota boundary.
func (q *DailyQuota) CheckAndReserve(ctx context.Context, accountID uint64) (Result, error) {
	if q == nil || q.db == nil || accountID == 0 {
		return Result{}, fmt.Errorf("rate limit: daily quota not initialized")
	}
	max := q.maxFn()
	now := q.nowFn().UTC()
	day := windowDay(now)
	reset := windowReset(now)

	window := models.SubmissionWindow{
		AccountID: accountID,
		Day:       day,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errEnsure := q.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(&window).Error; errEnsure != nil {
		return Result{}, fmt.Errorf("rate limit: ensure window: %w", errEnsure)
	}

	res := q.db.WithContext(ctx).Model(&models.SubmissionWindow{}).
		Where("account_id = ? AND day = ? AND reserved < ?", accountID, day, max).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return Result{}, fmt.Errorf("rate limit: reserve: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Result{Allowed: false, Remaining: 0, ResetsAt: reset}, nil
	}

	var current models.SubmissionWindow
	if errFind := q.db.WithContext(ctx).
		Where("account_id = ? AND day = ?", accountID, day).
		First(&current).Error; errFind != nil {
		return Result{}, fmt.Errorf("rate limit: load window: %w", errFind)
	}
	remaining := max - current.Reserved
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetsAt: reset}, nil
}

// Commit marks a reserved submission as committed after the owning write
// succeeded.
func (q *DailyQuota) Commit(ctx context.Context, accountID uint64) error {
	if q == nil || q.db == nil || accountID == 0 {
		return fmt.Errorf("rate limit: daily quota not initialized")
	}
	now := q.nowFn().UTC()
	res := q.db.WithContext(ctx).Model(&models.SubmissionWindow{}).
		Where("account_id = ? AND day = ?", accountID, windowDay(now)).
		Updates(map[string]any{
			"count":      gorm.Expr("count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("rate limit: commit: %w", res.Error)
	}
	return nil
}

// Release returns a reservation after a failed downstream write.
func (q *DailyQuota) Release(ctx context.Context, accountID uint64) error {
	if q == nil || q.db == nil || accountID == 0 {
		return fmt.Errorf("rate limit: daily quota not initialized")
	}
	now := q.nowFn().UTC()
	res := q.db.WithContext(ctx).Model(&models.SubmissionWindow{}).
		Where("account_id = ? AND day = ? AND reserved > 0", accountID, windowDay(now)).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved - 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("rate limit: release: %w", res.Error)
	}
	return nil
}

// Status reports current usage without reserving.
func (q *DailyQuota) Status(ctx context.Context, accountID uint64) (Result, error) {
	if q == nil || q.db == nil || accountID == 0 {
		return Result{}, fmt.Errorf("rate limit: daily quota not initialized")
	}
	max := q.maxFn()
	now := q.nowFn().UTC()
	reset := windowReset(now)

	var current models.SubmissionWindow
	errFind := q.db.WithContext(ctx).
		Where("account_id = ? AND day = ?", accountID, windowDay(now)).
		First(&current).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Result{Allowed: true, Remaining: max, ResetsAt: reset}, nil
		}
		return Result{}, fmt.Errorf("rate limit: load window: %w", errFind)
	}
	remaining := max - current.Reserved
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, ResetsAt: reset}, nil
}
