// Package expiry removes cache entries past their TTL. Expired entries are
// already invisible to search (the lookup query carries the cutoff); this
// runner reclaims the storage behind them.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/semcache/store"
)

type Runner struct {
	store    *store.Store
	interval time.Duration
}

// NewRunner creates a TTL expiry runner.
func NewRunner(store *store.Store, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		store:    store,
		interval: interval,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Reap once on startup
	r.reap(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reap(ctx)
		case <-ctx.Done():
			slog.Info("expiry runner stopped")
			return
		}
	}
}

// RunOnce reaps expired entries once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.reap(ctx)
}

func (r *Runner) reap(ctx context.Context) {
	deleted, err := r.store.DeleteExpiredEntries(ctx)
	if err != nil {
		slog.Error("failed to delete expired cache entries", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("expired cache entries deleted", "count", deleted)
	}
}
