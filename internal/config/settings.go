package config

import (
	"time"

	"gatekeeper/internal/support"
)

// Settings holds the runtime knobs of the filtering core. Everything is
// env-driven with defaults that match a single-instance deployment.
type Settings struct {
	// CacheTTL bounds how long a cached membership verdict is trusted.
	CacheTTL time.Duration

	// RollupInterval is the cadence of the three-stage stats rollup.
	RollupInterval time.Duration

	// SweepInterval is the cadence of the blacklist expiry sweep.
	SweepInterval time.Duration

	// BulkLimit caps the number of IPs accepted by one bulk call.
	BulkLimit int

	// SweepBatchSize caps how many expired rows one delete statement
	// removes; the sweep loops until the table is clean.
	SweepBatchSize int

	GeoIPCountryPath string
	GeoIPASNPath     string
}

func Load() Settings {
	return Settings{
		CacheTTL:         support.GetEnvDuration("BLACKLIST_CACHE_TTL", time.Hour),
		RollupInterval:   support.GetEnvDuration("STATS_ROLLUP_INTERVAL", time.Minute),
		SweepInterval:    support.GetEnvDuration("BLACKLIST_SWEEP_INTERVAL", time.Hour),
		BulkLimit:        support.GetEnvInt("BLACKLIST_BULK_LIMIT", 1000),
		SweepBatchSize:   support.GetEnvInt("BLACKLIST_SWEEP_BATCH_SIZE", 500),
		GeoIPCountryPath: support.GetEnv("GEOIP_COUNTRY_DB", ""),
		GeoIPASNPath:     support.GetEnv("GEOIP_ASN_DB", ""),
	}
}
