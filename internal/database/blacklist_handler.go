package database

import (
	"context"
	"strings"
	"time"

	"gatekeeper/internal/api/dto"
	"gatekeeper/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertEntryParams carries one detection to merge into the blacklist.
// A nil ExpiresAt means "not supplied": the prior expiry (or permanent
// state) of an existing row is retained.
type UpsertEntryParams struct {
	IP              string
	Reason          string
	DetectionType   string
	ConfidenceScore float64
	ExpiresAt       *time.Time
	IsPermanent     bool
	CampaignID      string
	UserID          string
}

// UpsertEntry inserts or merges a blacklist row in a single statement so
// concurrent detections for the same IP cannot lose counter increments.
// Merge rules on conflict: detection_count += 1, reason replaced,
// confidence max-merged, is_permanent OR-merged, expires_at only
// overwritten when a new value was supplied. Returns the post-merge row
// and whether it was newly created.
func (s *Store) UpsertEntry(ctx context.Context, p UpsertEntryParams) (domain.BlacklistEntry, bool, error) {
	now := time.Now().UTC()

	entry := domain.BlacklistEntry{
		IP:              p.IP,
		Reason:          p.Reason,
		DetectionType:   p.DetectionType,
		ConfidenceScore: p.ConfidenceScore,
		DetectionCount:  1,
		FirstDetected:   now,
		LastDetected:    now,
		ExpiresAt:       p.ExpiresAt,
		IsPermanent:     p.IsPermanent,
		CampaignID:      p.CampaignID,
		UserID:          p.UserID,
	}

	assignments := map[string]any{
		"detection_count":  gorm.Expr("blacklist_entries.detection_count + 1"),
		"last_detected":    now,
		"reason":           p.Reason,
		"detection_type":   p.DetectionType,
		"confidence_score": gorm.Expr("CASE WHEN excluded.confidence_score > blacklist_entries.confidence_score THEN excluded.confidence_score ELSE blacklist_entries.confidence_score END"),
		"is_permanent":     gorm.Expr("blacklist_entries.is_permanent OR excluded.is_permanent"),
	}
	if p.ExpiresAt != nil {
		assignments["expires_at"] = *p.ExpiresAt
	}
	if p.CampaignID != "" {
		assignments["campaign_id"] = p.CampaignID
	}
	if p.UserID != "" {
		assignments["user_id"] = p.UserID
	}

	err := s.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "ip"}},
				DoUpdates: clause.Assignments(assignments),
			},
			clause.Returning{},
		).
		Create(&entry).Error
	if err != nil {
		return domain.BlacklistEntry{}, false, err
	}

	return entry, entry.DetectionCount == 1, nil
}

// ActiveEntryExists reports whether an active row matches the IP.
func (s *Store) ActiveEntryExists(ctx context.Context, ip string) (bool, error) {
	var count int64
	err := scopeActive(s.db.WithContext(ctx).Model(&domain.BlacklistEntry{}), time.Now().UTC()).
		Where("ip = ?", ip).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteEntry removes the row for the IP and reports whether one existed.
func (s *Store) DeleteEntry(ctx context.Context, ip string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("ip = ?", ip).
		Delete(&domain.BlacklistEntry{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListQuery filters and paginates the active blacklist.
type ListQuery struct {
	Page          int
	Limit         int
	Search        string
	DetectionType string
}

// ListEntries returns one page of active entries ordered by most recent
// detection plus the total match count for pagination.
func (s *Store) ListEntries(ctx context.Context, q ListQuery) ([]domain.BlacklistEntry, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}

	base := scopeActive(s.db.WithContext(ctx).Model(&domain.BlacklistEntry{}), time.Now().UTC())
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		base = base.Where("LOWER(ip) LIKE ? OR LOWER(reason) LIKE ?", pattern, pattern)
	}
	if q.DetectionType != "" {
		base = base.Where("detection_type = ?", q.DetectionType)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []domain.BlacklistEntry
	err := base.
		Order("last_detected DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// EntryStatistics computes the aggregate snapshot counters.
func (s *Store) EntryStatistics(ctx context.Context) (dto.BlacklistStats, error) {
	now := time.Now().UTC()
	db := s.db.WithContext(ctx)

	var stats dto.BlacklistStats

	if err := scopeActive(db.Model(&domain.BlacklistEntry{}), now).
		Count(&stats.ActiveTotal).Error; err != nil {
		return dto.BlacklistStats{}, err
	}

	if err := scopeActive(db.Model(&domain.BlacklistEntry{}), now).
		Where("detection_type = ?", domain.DetectionTypeBot).
		Count(&stats.ActiveBots).Error; err != nil {
		return dto.BlacklistStats{}, err
	}

	if err := db.Model(&domain.BlacklistEntry{}).
		Where("is_permanent = ?", false).
		Where("expires_at > ? AND expires_at <= ?", now, now.Add(24*time.Hour)).
		Count(&stats.ExpiringSoon).Error; err != nil {
		return dto.BlacklistStats{}, err
	}

	if err := db.Model(&domain.BlacklistEntry{}).
		Where("is_permanent = ?", true).
		Count(&stats.Permanent).Error; err != nil {
		return dto.BlacklistStats{}, err
	}

	if err := db.Model(&domain.BlacklistEntry{}).
		Where("last_detected >= ?", now.Add(-24*time.Hour)).
		Count(&stats.RecentActivity).Error; err != nil {
		return dto.BlacklistStats{}, err
	}

	return stats, nil
}

// DeleteExpired removes every non-permanent row whose expiry has passed,
// in batches of batchSize, and returns the exact number of deleted rows.
func (s *Store) DeleteExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize < 1 {
		batchSize = 500
	}

	now := time.Now().UTC()
	db := s.db.WithContext(ctx)

	var deleted int64
	for {
		var ids []uint64
		err := db.Model(&domain.BlacklistEntry{}).
			Where("is_permanent = ?", false).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return deleted, err
		}
		if len(ids) == 0 {
			return deleted, nil
		}

		result := db.Where("id IN ?", ids).Delete(&domain.BlacklistEntry{})
		if result.Error != nil {
			return deleted, result.Error
		}
		deleted += result.RowsAffected

		if len(ids) < batchSize {
			return deleted, nil
		}
	}
}

func scopeActive(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("is_permanent = ? OR (expires_at IS NOT NULL AND expires_at > ?)", true, now)
}
