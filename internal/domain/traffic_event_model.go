package domain

import "time"

const MetricTypePageView = "page_view"

const (
	PageShownMoney = "money"
	PageShownSafe  = "safe"
)

// TrafficEvent is one raw request metric captured by the serving layer.
// The rollup pipeline only reads these rows; it never writes them.
type TrafficEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	CreatedAt time.Time `gorm:"not null;index"`

	CampaignID string `gorm:"size:64;not null;index"`
	StreamID   string `gorm:"size:64;not null"`
	MetricType string `gorm:"size:32;not null;index"`

	IsBot          bool   `gorm:"not null;default:false"`
	PageShown      string `gorm:"size:16;not null;default:''"`
	ResponseTimeMS int64  `gorm:"not null;default:0"`
}
