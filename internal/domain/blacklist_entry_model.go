package domain

import "time"

const (
	DetectionTypeBot        = "bot"
	DetectionTypeSuspicious = "suspicious"
	DetectionTypeManual     = "manual"
)

// BlacklistEntry stores one mutable row per detected IP. Repeat detections
// merge into the existing row instead of replacing it.
type BlacklistEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// IP holds the normalized address string (e.g. 192.0.2.1 or 2001:db8::1).
	IP string `gorm:"size:45;uniqueIndex;not null"`

	Reason          string  `gorm:"size:512;not null;default:''"`
	DetectionType   string  `gorm:"size:16;not null;index"`
	ConfidenceScore float64 `gorm:"not null;default:0"`

	// DetectionCount only ever grows; it starts at 1 on first insert.
	DetectionCount int64 `gorm:"not null;default:1"`

	FirstDetected time.Time `gorm:"not null"`
	LastDetected  time.Time `gorm:"not null;index"`

	// ExpiresAt is nil for rows without a scheduled expiry. A row is active
	// while IsPermanent is set or ExpiresAt lies in the future.
	ExpiresAt   *time.Time `gorm:"index"`
	IsPermanent bool       `gorm:"not null;default:false"`

	CampaignID string `gorm:"size:64;default:''"`
	UserID     string `gorm:"size:64;default:''"`
}

// ActiveAt reports whether the entry still blocks traffic at the given time.
func (e BlacklistEntry) ActiveAt(now time.Time) bool {
	if e.IsPermanent {
		return true
	}
	return e.ExpiresAt != nil && e.ExpiresAt.After(now)
}
