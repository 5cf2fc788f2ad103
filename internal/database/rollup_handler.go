package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gatekeeper/internal/domain"

	"gorm.io/gorm/clause"
)

const (
	minuteRollupWindow = 5 * time.Minute
	hourRollupWindow   = 2 * time.Hour
	dayRollupWindow    = 48 * time.Hour
)

var statsUpsertColumns = []string{
	"total_requests",
	"bot_requests",
	"human_requests",
	"money_page_shown",
	"safe_page_shown",
	"avg_response_time_ms",
}

// RunRollup executes the three cascade stages in order. A stage failure
// aborts the later stages for this cycle; rows already written stand and
// are corrected on the next run, because every stage recomputes and
// overwrites its full trailing window.
func (s *Store) RunRollup(ctx context.Context, now time.Time) error {
	if err := s.RollupMinutes(ctx, now); err != nil {
		return fmt.Errorf("rollup minutes: %w", err)
	}
	if err := s.RollupHours(ctx, now); err != nil {
		return fmt.Errorf("rollup hours: %w", err)
	}
	if err := s.RollupDays(ctx, now); err != nil {
		return fmt.Errorf("rollup days: %w", err)
	}
	return nil
}

type bucketKey struct {
	bucket   time.Time
	campaign string
	stream   string
}

type bucketAccum struct {
	total int64
	bot   int64
	human int64
	money int64
	safe  int64

	avgSum   float64
	avgCount int64
}

func (a *bucketAccum) avg() float64 {
	if a.avgCount == 0 {
		return 0
	}
	return a.avgSum / float64(a.avgCount)
}

// RollupMinutes aggregates raw page_view events from the trailing window
// into 1-minute buckets. Re-running the stage over the same window writes
// identical rows: the upsert replaces every counter instead of adding.
func (s *Store) RollupMinutes(ctx context.Context, now time.Time) error {
	since := now.UTC().Add(-minuteRollupWindow)

	var events []domain.TrafficEvent
	err := s.db.WithContext(ctx).
		Where("metric_type = ?", domain.MetricTypePageView).
		Where("created_at >= ?", since).
		Find(&events).Error
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	agg := make(map[bucketKey]*bucketAccum)
	for _, ev := range events {
		key := bucketKey{
			bucket:   ev.CreatedAt.UTC().Truncate(time.Minute),
			campaign: ev.CampaignID,
			stream:   ev.StreamID,
		}
		acc := agg[key]
		if acc == nil {
			acc = &bucketAccum{}
			agg[key] = acc
		}

		acc.total++
		if ev.IsBot {
			acc.bot++
		} else {
			acc.human++
		}
		switch ev.PageShown {
		case domain.PageShownMoney:
			acc.money++
		case domain.PageShownSafe:
			acc.safe++
		}
		acc.avgSum += float64(ev.ResponseTimeMS)
		acc.avgCount++
	}

	rows := make([]domain.StatsMinute, 0, len(agg))
	for key, acc := range agg {
		rows = append(rows, domain.StatsMinute{
			BucketTime:        key.bucket,
			CampaignID:        key.campaign,
			StreamID:          key.stream,
			TotalRequests:     acc.total,
			BotRequests:       acc.bot,
			HumanRequests:     acc.human,
			MoneyPageShown:    acc.money,
			SafePageShown:     acc.safe,
			AvgResponseTimeMS: acc.avg(),
		})
	}
	sortStatsMinutes(rows)

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   statsConflictColumns(),
			DoUpdates: clause.AssignmentColumns(statsUpsertColumns),
		}).
		Create(&rows).Error
}

// RollupHours reduces the 1-minute tier over the trailing window into
// 1-hour buckets: counters are summed, the response-time column is
// averaged across the source rows.
func (s *Store) RollupHours(ctx context.Context, now time.Time) error {
	since := now.UTC().Add(-hourRollupWindow)

	var minutes []domain.StatsMinute
	err := s.db.WithContext(ctx).
		Where("bucket_time >= ?", since).
		Find(&minutes).Error
	if err != nil {
		return err
	}
	if len(minutes) == 0 {
		return nil
	}

	agg := make(map[bucketKey]*bucketAccum)
	for _, row := range minutes {
		key := bucketKey{
			bucket:   row.BucketTime.UTC().Truncate(time.Hour),
			campaign: row.CampaignID,
			stream:   row.StreamID,
		}
		reduceBucket(agg, key, row.TotalRequests, row.BotRequests, row.HumanRequests,
			row.MoneyPageShown, row.SafePageShown, row.AvgResponseTimeMS)
	}

	rows := make([]domain.StatsHour, 0, len(agg))
	for key, acc := range agg {
		rows = append(rows, domain.StatsHour{
			BucketTime:        key.bucket,
			CampaignID:        key.campaign,
			StreamID:          key.stream,
			TotalRequests:     acc.total,
			BotRequests:       acc.bot,
			HumanRequests:     acc.human,
			MoneyPageShown:    acc.money,
			SafePageShown:     acc.safe,
			AvgResponseTimeMS: acc.avg(),
		})
	}
	sortStatsHours(rows)

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   statsConflictColumns(),
			DoUpdates: clause.AssignmentColumns(statsUpsertColumns),
		}).
		Create(&rows).Error
}

// RollupDays reduces the 1-hour tier over the trailing window into 1-day
// buckets with the same reduction as RollupHours.
func (s *Store) RollupDays(ctx context.Context, now time.Time) error {
	since := now.UTC().Add(-dayRollupWindow)

	var hours []domain.StatsHour
	err := s.db.WithContext(ctx).
		Where("bucket_time >= ?", since).
		Find(&hours).Error
	if err != nil {
		return err
	}
	if len(hours) == 0 {
		return nil
	}

	agg := make(map[bucketKey]*bucketAccum)
	for _, row := range hours {
		key := bucketKey{
			bucket:   truncateToDay(row.BucketTime),
			campaign: row.CampaignID,
			stream:   row.StreamID,
		}
		reduceBucket(agg, key, row.TotalRequests, row.BotRequests, row.HumanRequests,
			row.MoneyPageShown, row.SafePageShown, row.AvgResponseTimeMS)
	}

	rows := make([]domain.StatsDay, 0, len(agg))
	for key, acc := range agg {
		rows = append(rows, domain.StatsDay{
			BucketTime:        key.bucket,
			CampaignID:        key.campaign,
			StreamID:          key.stream,
			TotalRequests:     acc.total,
			BotRequests:       acc.bot,
			HumanRequests:     acc.human,
			MoneyPageShown:    acc.money,
			SafePageShown:     acc.safe,
			AvgResponseTimeMS: acc.avg(),
		})
	}
	sortStatsDays(rows)

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   statsConflictColumns(),
			DoUpdates: clause.AssignmentColumns(statsUpsertColumns),
		}).
		Create(&rows).Error
}

func reduceBucket(agg map[bucketKey]*bucketAccum, key bucketKey, total, bot, human, money, safe int64, avgMS float64) {
	acc := agg[key]
	if acc == nil {
		acc = &bucketAccum{}
		agg[key] = acc
	}

	acc.total += total
	acc.bot += bot
	acc.human += human
	acc.money += money
	acc.safe += safe
	acc.avgSum += avgMS
	acc.avgCount++
}

func statsConflictColumns() []clause.Column {
	return []clause.Column{
		{Name: "bucket_time"},
		{Name: "campaign_id"},
		{Name: "stream_id"},
	}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortStatsMinutes(rows []domain.StatsMinute) {
	sort.Slice(rows, func(i, j int) bool { return statsLess(rows[i].BucketTime, rows[i].CampaignID, rows[i].StreamID, rows[j].BucketTime, rows[j].CampaignID, rows[j].StreamID) })
}

func sortStatsHours(rows []domain.StatsHour) {
	sort.Slice(rows, func(i, j int) bool { return statsLess(rows[i].BucketTime, rows[i].CampaignID, rows[i].StreamID, rows[j].BucketTime, rows[j].CampaignID, rows[j].StreamID) })
}

func sortStatsDays(rows []domain.StatsDay) {
	sort.Slice(rows, func(i, j int) bool { return statsLess(rows[i].BucketTime, rows[i].CampaignID, rows[i].StreamID, rows[j].BucketTime, rows[j].CampaignID, rows[j].StreamID) })
}

func statsLess(ti time.Time, ci, si string, tj time.Time, cj, sj string) bool {
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	if ci != cj {
		return ci < cj
	}
	return si < sj
}
