package domain

import "time"

// The three rollup tiers share one shape. A tier's rows are fully owned
// by the stage that writes it and are overwritten wholesale on
// re-aggregation, never incremented. AvgResponseTimeMS is averaged
// across the source rows, not summed.

type StatsMinute struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	BucketTime time.Time `gorm:"not null;uniqueIndex:idx_stats_minutely_bucket,priority:1"`
	CampaignID string    `gorm:"size:64;not null;uniqueIndex:idx_stats_minutely_bucket,priority:2"`
	StreamID   string    `gorm:"size:64;not null;uniqueIndex:idx_stats_minutely_bucket,priority:3"`

	TotalRequests  int64 `gorm:"not null;default:0"`
	BotRequests    int64 `gorm:"not null;default:0"`
	HumanRequests  int64 `gorm:"not null;default:0"`
	MoneyPageShown int64 `gorm:"not null;default:0"`
	SafePageShown  int64 `gorm:"not null;default:0"`

	AvgResponseTimeMS float64 `gorm:"not null;default:0"`
}

func (StatsMinute) TableName() string { return "stats_minutely" }

type StatsHour struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	BucketTime time.Time `gorm:"not null;uniqueIndex:idx_stats_hourly_bucket,priority:1"`
	CampaignID string    `gorm:"size:64;not null;uniqueIndex:idx_stats_hourly_bucket,priority:2"`
	StreamID   string    `gorm:"size:64;not null;uniqueIndex:idx_stats_hourly_bucket,priority:3"`

	TotalRequests  int64 `gorm:"not null;default:0"`
	BotRequests    int64 `gorm:"not null;default:0"`
	HumanRequests  int64 `gorm:"not null;default:0"`
	MoneyPageShown int64 `gorm:"not null;default:0"`
	SafePageShown  int64 `gorm:"not null;default:0"`

	AvgResponseTimeMS float64 `gorm:"not null;default:0"`
}

func (StatsHour) TableName() string { return "stats_hourly" }

type StatsDay struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	BucketTime time.Time `gorm:"not null;uniqueIndex:idx_stats_daily_bucket,priority:1"`
	CampaignID string    `gorm:"size:64;not null;uniqueIndex:idx_stats_daily_bucket,priority:2"`
	StreamID   string    `gorm:"size:64;not null;uniqueIndex:idx_stats_daily_bucket,priority:3"`

	TotalRequests  int64 `gorm:"not null;default:0"`
	BotRequests    int64 `gorm:"not null;default:0"`
	HumanRequests  int64 `gorm:"not null;default:0"`
	MoneyPageShown int64 `gorm:"not null;default:0"`
	SafePageShown  int64 `gorm:"not null;default:0"`

	AvgResponseTimeMS float64 `gorm:"not null;default:0"`
}

func (StatsDay) TableName() string { return "stats_daily" }
