package domain

import "time"

const (
	EventTypeAdded   = "added"
	EventTypeUpdated = "updated"
	EventTypeRemoved = "removed"
)

// BlacklistEvent is an append-only audit record. There is no update or
// delete path for these rows.
type BlacklistEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP        string `gorm:"size:45;not null;index"`
	EventType string `gorm:"size:16;not null"`
	Reason    string `gorm:"size:512;not null;default:''"`

	UserID     string `gorm:"size:64;default:''"`
	CampaignID string `gorm:"size:64;default:''"`

	Metadata []byte `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
