package domain

import "time"

const (
	RiskCategoryLow      = "low"
	RiskCategoryMedium   = "medium"
	RiskCategoryHigh     = "high"
	RiskCategoryCritical = "critical"
)

// IPReputation tracks a per-IP score that only detections can lower.
// Rows are created lazily on the first scoring event and never deleted.
type IPReputation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP string `gorm:"size:45;uniqueIndex;not null"`

	// ReputationScore stays inside [0,100].
	ReputationScore int `gorm:"not null;default:100"`

	TotalDetections int64     `gorm:"not null;default:0"`
	LastActivity    time.Time `gorm:"not null"`

	// RiskCategory is derived from the score after every update and is
	// never set independently.
	RiskCategory string `gorm:"size:16;not null"`

	// DataSources collects the detector tag of every contributing
	// detection. Duplicates are kept on purpose.
	DataSources StringList `gorm:"type:jsonb"`
}
