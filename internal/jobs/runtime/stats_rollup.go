package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"gatekeeper/internal/database"
	"gatekeeper/internal/support"
)

const statsRollupLockKey = "gatekeeper:leader:stats_rollup"

// StartStatsRollupRoutine runs the cascade aggregation on a fixed cadence
// behind a leadership lock, so only one instance rolls up at a time.
func StartStatsRollupRoutine(ctx context.Context, store *database.Store, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	err := support.RunWithLeader(ctx, statsRollupLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		runStatsRollupLoop(leaderCtx, store, interval)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Stats rollup routine stopped", "error", err)
	}
}

func runStatsRollupLoop(ctx context.Context, store *database.Store, interval time.Duration) {
	runStatsRollupOnce(ctx, store)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runStatsRollupOnce(ctx, store)
		}
	}
}

func runStatsRollupOnce(ctx context.Context, store *database.Store) {
	start := time.Now()
	if err := store.RunRollup(ctx, start); err != nil {
		// Rows written by earlier stages stand; the next cycle
		// recomputes the full trailing windows and self-heals.
		log.Error("Stats rollup cycle failed", "error", err)
		return
	}
	log.Info("Stats rollup completed", "duration", time.Since(start))
}
