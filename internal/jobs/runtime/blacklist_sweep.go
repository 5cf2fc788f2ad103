package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"gatekeeper/internal/blacklist"
	"gatekeeper/internal/support"
)

const blacklistSweepLockKey = "gatekeeper:leader:blacklist_sweep"

// StartBlacklistSweepRoutine periodically deletes expired blacklist rows.
// Leader-locked: replicas besides the leader stay idle.
func StartBlacklistSweepRoutine(ctx context.Context, engine *blacklist.Engine, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	err := support.RunWithLeader(ctx, blacklistSweepLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		runBlacklistSweepLoop(leaderCtx, engine, interval)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Blacklist sweep routine stopped", "error", err)
	}
}

func runBlacklistSweepLoop(ctx context.Context, engine *blacklist.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runBlacklistSweepOnce(ctx, engine)
		}
	}
}

func runBlacklistSweepOnce(ctx context.Context, engine *blacklist.Engine) {
	start := time.Now()
	deleted, err := engine.CleanExpired(ctx)
	if err != nil {
		log.Error("Blacklist sweep failed", "error", err, "deleted", deleted)
		return
	}
	if deleted > 0 {
		log.Info("Blacklist sweep completed", "deleted", deleted, "duration", time.Since(start))
	}
}
