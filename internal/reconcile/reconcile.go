// Package reconcile runs the periodic ledger consistency sweep. The cached
// balance on each account is a projection of the append-only ledger; the
// sweep recomputes every balance from the ledger and repairs drift.
package reconcile

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tiker-app/tiker/internal/economy"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
)

// Reconciler drives periodic balance reconciliation.
type Reconciler struct {
	service *economy.Service
	nowFn   func() time.Time
}

// New constructs a Reconciler.
func New(service *economy.Service, nowFn func() time.Time) *Reconciler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Reconciler{service: service, nowFn: nowFn}
}

// interval reads the sweep interval from settings, re-read each tick so
// operators can retune it live.
func (r *Reconciler) interval() time.Duration {
	seconds := internalsettings.IntValue(internalsettings.ReconcileIntervalSecondsKey, internalsettings.DefaultReconcileIntervalSeconds)
	if seconds <= 0 {
		seconds = internalsettings.DefaultReconcileIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Start runs the sweep loop until the context is canceled. One sweep runs
// immediately so a fresh deploy repairs drift without waiting a full
// interval.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		r.RunOnce(ctx)
		timer := time.NewTimer(r.interval())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				r.RunOnce(ctx)
				timer.Reset(r.interval())
			}
		}
	}()
}

// RunOnce performs a single reconciliation sweep and logs the outcome.
func (r *Reconciler) RunOnce(ctx context.Context) {
	started := r.nowFn()
	fixed, errRun := r.service.ReconcileBalances(ctx)
	if errRun != nil {
		log.WithError(errRun).Error("balance reconciliation failed")
		return
	}
	entry := log.WithField("elapsed", time.Since(started).Round(time.Millisecond))
	if fixed > 0 {
		entry.WithField("repaired", fixed).Warn("balance drift repaired")
		return
	}
	entry.Debug("balance reconciliation clean")
}
