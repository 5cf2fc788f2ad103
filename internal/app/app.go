package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"gatekeeper/internal/blacklist"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/geo"
	"gatekeeper/internal/jobs/runtime"
	"gatekeeper/internal/support"
)

// Run wires the filtering core together and blocks until shutdown: env,
// database, Redis, the blacklist engine, and the background routines.
func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	settings := config.Load()

	db, err := database.SetupDB()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	store := database.NewStore(db)

	redisClient, err := support.GetRedisClient()
	if err != nil {
		return fmt.Errorf("failed to get redis client: %w", err)
	}
	defer func() {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	heartbeatCancel := runtime.LaunchInstanceHeartbeat(ctx, redisClient)
	defer heartbeatCancel()

	engineOpts := []blacklist.Option{
		blacklist.WithBulkLimit(settings.BulkLimit),
		blacklist.WithSweepBatchSize(settings.SweepBatchSize),
	}

	enricher, err := geo.Open(settings.GeoIPCountryPath, settings.GeoIPASNPath)
	if err != nil {
		log.Warn("GeoIP databases unavailable, events carry no geo tags", "error", err)
	} else {
		defer enricher.Close()
		engineOpts = append(engineOpts, blacklist.WithEnricher(enricher))
	}

	blacklistCache := cache.NewBlacklistCache(redisClient, settings.CacheTTL)
	engine := blacklist.NewEngine(store, blacklistCache, engineOpts...)

	go runtime.StartStatsRollupRoutine(ctx, store, settings.RollupInterval)
	go runtime.StartBlacklistSweepRoutine(ctx, engine, settings.SweepInterval)

	instances, err := runtime.CountActiveInstances(ctx, redisClient)
	if err != nil {
		log.Warn("Failed to count active instances", "error", err)
	}

	log.Info("gatekeeper core running",
		"cache_ttl", settings.CacheTTL,
		"rollup_interval", settings.RollupInterval,
		"sweep_interval", settings.SweepInterval,
		"active_instances", instances,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
