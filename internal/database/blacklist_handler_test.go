package database

import (
	"context"
	"testing"
	"time"

	"gatekeeper/internal/domain"
)

func TestUpsertEntryCreatesThenMerges(t *testing.T) {
	store, _ := setupStoreTestDB(t)
	ctx := context.Background()

	entry, created, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:              "1.2.3.4",
		Reason:          "headless browser",
		DetectionType:   domain.DetectionTypeBot,
		ConfidenceScore: 0.9,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatalf("first upsert should report a new row")
	}
	if entry.DetectionCount != 1 {
		t.Fatalf("detection count = %d, want 1", entry.DetectionCount)
	}

	entry, created, err = store.UpsertEntry(ctx, UpsertEntryParams{
		IP:              "1.2.3.4",
		Reason:          "datacenter asn",
		DetectionType:   domain.DetectionTypeSuspicious,
		ConfidenceScore: 0.4,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatalf("second upsert should merge, not create")
	}
	if entry.DetectionCount != 2 {
		t.Fatalf("detection count = %d, want 2", entry.DetectionCount)
	}
	if entry.Reason != "datacenter asn" {
		t.Fatalf("reason = %q, want latest value", entry.Reason)
	}
	if entry.ConfidenceScore != 0.9 {
		t.Fatalf("confidence = %v, want max-merged 0.9", entry.ConfidenceScore)
	}

	entry, _, err = store.UpsertEntry(ctx, UpsertEntryParams{
		IP:              "1.2.3.4",
		Reason:          "manual review",
		DetectionType:   domain.DetectionTypeManual,
		ConfidenceScore: 0.95,
	})
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if entry.DetectionCount != 3 {
		t.Fatalf("detection count = %d, want 3", entry.DetectionCount)
	}
	if entry.ConfidenceScore != 0.95 {
		t.Fatalf("confidence = %v, want 0.95 after higher detection", entry.ConfidenceScore)
	}
}

func TestUpsertEntryExpiryResolution(t *testing.T) {
	store, _ := setupStoreTestDB(t)
	ctx := context.Background()

	firstExpiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	if _, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "2.2.2.2",
		Reason:        "rate abuse",
		DetectionType: domain.DetectionTypeBot,
		ExpiresAt:     &firstExpiry,
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	// No new expiry supplied: the prior one is retained.
	entry, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "2.2.2.2",
		Reason:        "rate abuse again",
		DetectionType: domain.DetectionTypeBot,
	})
	if err != nil {
		t.Fatalf("merge without expiry: %v", err)
	}
	if entry.ExpiresAt == nil || !entry.ExpiresAt.Equal(firstExpiry) {
		t.Fatalf("expires_at = %v, want retained %v", entry.ExpiresAt, firstExpiry)
	}

	// A new expiry replaces the prior one.
	secondExpiry := firstExpiry.Add(24 * time.Hour)
	entry, _, err = store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "2.2.2.2",
		Reason:        "extended ban",
		DetectionType: domain.DetectionTypeManual,
		ExpiresAt:     &secondExpiry,
	})
	if err != nil {
		t.Fatalf("merge with new expiry: %v", err)
	}
	if entry.ExpiresAt == nil || !entry.ExpiresAt.Equal(secondExpiry) {
		t.Fatalf("expires_at = %v, want replaced %v", entry.ExpiresAt, secondExpiry)
	}
}

func TestUpsertEntryPermanentFlagIsSticky(t *testing.T) {
	store, _ := setupStoreTestDB(t)
	ctx := context.Background()

	if _, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "3.3.3.3",
		Reason:        "manual block",
		DetectionType: domain.DetectionTypeManual,
		IsPermanent:   true,
	}); err != nil {
		t.Fatalf("create permanent entry: %v", err)
	}

	entry, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "3.3.3.3",
		Reason:        "bot traffic",
		DetectionType: domain.DetectionTypeBot,
		IsPermanent:   false,
	})
	if err != nil {
		t.Fatalf("merge entry: %v", err)
	}
	if !entry.IsPermanent {
		t.Fatalf("is_permanent lost on merge; want OR semantics")
	}
}

func TestActiveEntryExists(t *testing.T) {
	store, _ := setupStoreTestDB(t)
	ctx := context.Background()

	exists, err := store.ActiveEntryExists(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("check unknown ip: %v", err)
	}
	if exists {
		t.Fatalf("unknown ip reported active")
	}

	past := time.Now().UTC().Add(-time.Minute)
	if _, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "9.9.9.9",
		Reason:        "short ban",
		DetectionType: domain.DetectionTypeBot,
		ExpiresAt:     &past,
	}); err != nil {
		t.Fatalf("create expired entry: %v", err)
	}

	exists, err = store.ActiveEntryExists(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("check expired ip: %v", err)
	}
	if exists {
		t.Fatalf("expired non-permanent entry reported active")
	}

	future := time.Now().UTC().Add(time.Hour)
	if _, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "9.9.9.9",
		Reason:        "renewed ban",
		DetectionType: domain.DetectionTypeBot,
		ExpiresAt:     &future,
	}); err != nil {
		t.Fatalf("renew entry: %v", err)
	}

	exists, err = store.ActiveEntryExists(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("check renewed ip: %v", err)
	}
	if !exists {
		t.Fatalf("renewed entry not reported active")
	}
}

func TestDeleteEntry(t *testing.T) {
	store, _ := setupStoreTestDB(t)
	ctx := context.Background()

	found, err := store.DeleteEntry(ctx, "8.8.8.8")
	if err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if found {
		t.Fatalf("delete of unknown ip reported a row")
	}

	if _, _, err := store.UpsertEntry(ctx, UpsertEntryParams{
		IP:            "8.8.8.8",
		Reason:        "test",
		DetectionType: domain.DetectionTypeManual,
		IsPermanent:   true,
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	found, err = store.DeleteEntry(ctx, "8.8.8.8")
	if err != nil {
		t.Fatalf("delete existing: %v", err)
	}
	if !found {
		t.Fatalf("delete of existing ip reported no row")
	}
}

func TestListEntriesFiltersAndOrders(t *testing.T) {
	store, db := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []domain.BlacklistEntry{
		{IP: "10.0.0.1", Reason: "scraper farm", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now.Add(-3 * time.Hour), LastDetected: now.Add(-3 * time.Hour), IsPermanent: true},
		{IP: "10.0.0.2", Reason: "odd headers", DetectionType: domain.DetectionTypeSuspicious, DetectionCount: 1, FirstDetected: now.Add(-2 * time.Hour), LastDetected: now.Add(-2 * time.Hour), IsPermanent: true},
		{IP: "10.0.0.3", Reason: "manual block", DetectionType: domain.DetectionTypeManual, DetectionCount: 1, FirstDetected: now.Add(-time.Hour), LastDetected: now.Add(-time.Hour), IsPermanent: true},
	}
	expired := now.Add(-time.Minute)
	rows = append(rows, domain.BlacklistEntry{
		IP: "10.0.0.4", Reason: "expired scraper", DetectionType: domain.DetectionTypeBot,
		DetectionCount: 1, FirstDetected: now.Add(-time.Hour), LastDetected: now.Add(-30 * time.Minute),
		ExpiresAt: &expired,
	})
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed entries: %v", err)
	}

	entries, total, err := store.ListEntries(ctx, ListQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3 active rows", total)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].IP != "10.0.0.3" || entries[2].IP != "10.0.0.1" {
		t.Fatalf("entries not ordered by last_detected desc: %s .. %s", entries[0].IP, entries[2].IP)
	}

	entries, total, err = store.ListEntries(ctx, ListQuery{Page: 1, Limit: 10, DetectionType: domain.DetectionTypeBot})
	if err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if total != 1 || entries[0].IP != "10.0.0.1" {
		t.Fatalf("detection type filter returned %d rows (first %v)", total, entries)
	}

	entries, total, err = store.ListEntries(ctx, ListQuery{Page: 1, Limit: 10, Search: "headers"})
	if err != nil {
		t.Fatalf("list search: %v", err)
	}
	if total != 1 || entries[0].IP != "10.0.0.2" {
		t.Fatalf("search filter returned %d rows", total)
	}

	entries, total, err = store.ListEntries(ctx, ListQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if total != 3 || len(entries) != 1 {
		t.Fatalf("pagination: total %d entries %d, want 3/1", total, len(entries))
	}
}

func TestEntryStatistics(t *testing.T) {
	store, db := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := now.Add(2 * time.Hour)
	later := now.Add(48 * time.Hour)
	expired := now.Add(-time.Hour)

	rows := []domain.BlacklistEntry{
		{IP: "20.0.0.1", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &soon},
		{IP: "20.0.0.2", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now, LastDetected: now.Add(-48 * time.Hour), ExpiresAt: &later},
		{IP: "20.0.0.3", DetectionType: domain.DetectionTypeManual, DetectionCount: 1, FirstDetected: now, LastDetected: now, IsPermanent: true},
		{IP: "20.0.0.4", DetectionType: domain.DetectionTypeSuspicious, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &expired},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed entries: %v", err)
	}

	stats, err := store.EntryStatistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}

	if stats.ActiveTotal != 3 {
		t.Fatalf("active total = %d, want 3", stats.ActiveTotal)
	}
	if stats.ActiveBots != 2 {
		t.Fatalf("active bots = %d, want 2", stats.ActiveBots)
	}
	if stats.ExpiringSoon != 1 {
		t.Fatalf("expiring soon = %d, want 1", stats.ExpiringSoon)
	}
	if stats.Permanent != 1 {
		t.Fatalf("permanent = %d, want 1", stats.Permanent)
	}
	if stats.RecentActivity != 3 {
		t.Fatalf("recent activity = %d, want 3", stats.RecentActivity)
	}
}

func TestDeleteExpired(t *testing.T) {
	store, db := setupStoreTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired1 := now.Add(-time.Hour)
	expired2 := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	rows := []domain.BlacklistEntry{
		{IP: "30.0.0.1", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &expired1},
		{IP: "30.0.0.2", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &expired2},
		// Permanent rows survive even with a stale expiry on record.
		{IP: "30.0.0.3", DetectionType: domain.DetectionTypeManual, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &expired1, IsPermanent: true},
		{IP: "30.0.0.4", DetectionType: domain.DetectionTypeBot, DetectionCount: 1, FirstDetected: now, LastDetected: now, ExpiresAt: &future},
		{IP: "30.0.0.5", DetectionType: domain.DetectionTypeManual, DetectionCount: 1, FirstDetected: now, LastDetected: now, IsPermanent: true},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed entries: %v", err)
	}

	deleted, err := store.DeleteExpired(ctx, 1)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want exactly 2", deleted)
	}

	var remaining int64
	if err := db.Model(&domain.BlacklistEntry{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining rows = %d, want 3", remaining)
	}
}
