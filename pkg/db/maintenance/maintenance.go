// Package maintenance trims the database at startup.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"stilllift/pkg/db"
)

// Options bound what is kept.
type Options struct {
	CacheTTL    time.Duration // synthesized speech older than this is dropped; 0 keeps all
	HistoryKeep int           // newest narration records kept; 0 keeps all
}

// Run executes all maintenance tasks. Failures are logged, not returned, so
// startup continues.
func Run(ctx context.Context, d *db.DB, opts Options) {
	slog.Info("Starting database maintenance...")

	if opts.CacheTTL > 0 {
		if n, err := d.PruneCache(opts.CacheTTL); err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			slog.Info("Cache pruning completed", "removed", n)
		}
	}

	if ctx.Err() != nil {
		return
	}

	if opts.HistoryKeep > 0 {
		if n, err := d.PruneHistory(opts.HistoryKeep); err != nil {
			slog.Error("History pruning failed", "error", err)
		} else {
			slog.Info("History pruning completed", "removed", n)
		}
	}
}
