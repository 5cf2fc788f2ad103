package database

import (
	"context"

	"gatekeeper/internal/domain"
)

// AppendEvent writes one audit record. Events are write-only; nothing in
// the codebase updates or deletes them.
func (s *Store) AppendEvent(ctx context.Context, event domain.BlacklistEvent) error {
	return s.db.WithContext(ctx).Create(&event).Error
}

// RecentEvents returns the newest audit records for an IP, most recent
// first. Used by operators to trace how an entry evolved.
func (s *Store) RecentEvents(ctx context.Context, ip string, limit int) ([]domain.BlacklistEvent, error) {
	if limit < 1 {
		limit = 50
	}

	var events []domain.BlacklistEvent
	err := s.db.WithContext(ctx).
		Where("ip = ?", ip).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
