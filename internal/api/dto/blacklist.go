package dto

import (
	"time"

	"gatekeeper/internal/domain"
)

// CheckResult is the answer to a single membership check.
type CheckResult struct {
	IP            string    `json:"ip"`
	IsBlacklisted bool      `json:"isBlacklisted"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	BulkStatusAdded    = "added"
	BulkStatusUpdated  = "updated"
	BulkStatusRemoved  = "removed"
	BulkStatusNotFound = "not_found"
	BulkStatusError    = "error"
)

type BulkItemResult struct {
	IP     string `json:"ip"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkResult struct {
	Results []BulkItemResult `json:"results"`
	Summary BulkSummary      `json:"summary"`
}

// BlacklistPage is one page of active entries plus the total match count.
type BlacklistPage struct {
	Entries []domain.BlacklistEntry `json:"entries"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
}

// BlacklistStats is a point-in-time aggregate snapshot of the blacklist.
type BlacklistStats struct {
	ActiveTotal    int64 `json:"activeTotal"`
	ActiveBots     int64 `json:"activeBots"`
	ExpiringSoon   int64 `json:"expiringSoon"`
	Permanent      int64 `json:"permanent"`
	RecentActivity int64 `json:"recentActivity"`
}
