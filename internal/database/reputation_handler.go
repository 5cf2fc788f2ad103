package database

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/reputation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetReputation returns the reputation row for the IP, or nil when no
// scoring event has touched that address yet.
func (s *Store) GetReputation(ctx context.Context, ip string) (*domain.IPReputation, error) {
	var rep domain.IPReputation
	err := s.db.WithContext(ctx).
		Where("ip = ?", ip).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// ApplyDetection folds one detection into the IP's reputation: the score
// drops by the confidence-scaled deduction, the detection counter grows,
// the risk category is recomputed from the post-update score, and the
// detector tag is appended to data_sources without deduplication.
//
// Read-modify-write on purpose: overlapping detections for the same IP
// may interleave, which is acceptable for an approximate signal.
func (s *Store) ApplyDetection(ctx context.Context, ip, detectionType string, confidenceScore float64) error {
	now := time.Now().UTC()
	db := s.db.WithContext(ctx)

	prev := -1
	var total int64
	var sources domain.StringList

	var existing domain.IPReputation
	err := db.Where("ip = ?", ip).First(&existing).Error
	switch {
	case err == nil:
		prev = existing.ReputationScore
		total = existing.TotalDetections
		sources = existing.DataSources
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return err
	}

	score := reputation.Apply(prev, detectionType, confidenceScore)

	rep := domain.IPReputation{
		IP:              ip,
		ReputationScore: score,
		TotalDetections: total + 1,
		LastActivity:    now,
		RiskCategory:    reputation.CategoryFor(score),
		DataSources:     append(sources, detectionType),
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reputation_score",
			"total_detections",
			"last_activity",
			"risk_category",
			"data_sources",
		}),
	}).Create(&rep).Error
}
