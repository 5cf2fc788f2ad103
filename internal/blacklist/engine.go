package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"gatekeeper/internal/api/dto"
	"gatekeeper/internal/database"
	"gatekeeper/internal/domain"
)

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

const (
	defaultBulkLimit      = 1000
	defaultSweepBatchSize = 500
)

// Store is the ground-truth surface the engine needs. *database.Store
// implements it; tests substitute fakes or failure-injecting wrappers.
type Store interface {
	UpsertEntry(ctx context.Context, p database.UpsertEntryParams) (domain.BlacklistEntry, bool, error)
	ActiveEntryExists(ctx context.Context, ip string) (bool, error)
	DeleteEntry(ctx context.Context, ip string) (bool, error)
	ListEntries(ctx context.Context, q database.ListQuery) ([]domain.BlacklistEntry, int64, error)
	EntryStatistics(ctx context.Context) (dto.BlacklistStats, error)
	DeleteExpired(ctx context.Context, batchSize int) (int64, error)
	GetReputation(ctx context.Context, ip string) (*domain.IPReputation, error)
	ApplyDetection(ctx context.Context, ip, detectionType string, confidenceScore float64) error
	AppendEvent(ctx context.Context, event domain.BlacklistEvent) error
}

// Cache is the membership-check accelerator. Implementations must treat
// Invalidate as a delete, never a value overwrite.
type Cache interface {
	Lookup(ctx context.Context, ip string) (value bool, found bool, err error)
	Store(ctx context.Context, ip string, blacklisted bool) error
	Invalidate(ctx context.Context, ip string) error
	FlushAll(ctx context.Context) error
}

// MetadataEnricher supplies extra tags (country, ASN) for audit events.
type MetadataEnricher interface {
	Annotate(ip string) map[string]any
}

// Engine is the decision and mutation surface for IP blacklisting. It is
// called inline on request-serving paths: each method performs at most
// one cache round-trip plus one store round-trip and never retries.
type Engine struct {
	store    Store
	cache    Cache
	enricher MetadataEnricher

	bulkLimit      int
	sweepBatchSize int

	checkGroup singleflight.Group
}

type Option func(*Engine)

func WithEnricher(enricher MetadataEnricher) Option {
	return func(e *Engine) {
		e.enricher = enricher
	}
}

func WithBulkLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.bulkLimit = limit
		}
	}
}

func WithSweepBatchSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.sweepBatchSize = size
		}
	}
}

func NewEngine(store Store, cache Cache, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		cache:          cache,
		bulkLimit:      defaultBulkLimit,
		sweepBatchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check answers whether the IP is actively blacklisted, cache first.
// Fail-open: any cache or store failure resolves to "not blacklisted" so
// traffic serving never stalls on this lookup; the failure is logged.
// Malformed literals are rejected before any I/O.
func (e *Engine) Check(ctx context.Context, rawIP string) (dto.CheckResult, error) {
	ip, err := NormalizeIP(rawIP)
	if err != nil {
		return dto.CheckResult{}, err
	}

	result := dto.CheckResult{
		IP:        ip,
		Timestamp: time.Now().UTC(),
	}

	cached, found, err := e.cache.Lookup(ctx, ip)
	if err != nil {
		log.Error("Blacklist cache lookup failed, failing open", "ip", ip, "error", err)
		return result, nil
	}
	if found {
		result.IsBlacklisted = cached
		return result, nil
	}

	// Collapse concurrent misses for the same IP into one store query.
	// The query is shared across callers: detach it from this caller's
	// cancellation so one canceled request cannot hand waiters a
	// fail-open verdict.
	lookupCtx := context.WithoutCancel(ctx)
	value, _, _ := e.checkGroup.Do(ip, func() (any, error) {
		exists, err := e.store.ActiveEntryExists(lookupCtx, ip)
		if err != nil {
			log.Error("Blacklist store lookup failed, failing open", "ip", ip, "error", err)
			return false, nil
		}
		if err := e.cache.Store(lookupCtx, ip, exists); err != nil {
			log.Warn("Failed to cache blacklist verdict", "ip", ip, "error", err)
		}
		return exists, nil
	})

	result.IsBlacklisted, _ = value.(bool)
	return result, nil
}

// AddParams describes one detection to record.
type AddParams struct {
	IP              string
	Reason          string
	DetectionType   string
	ConfidenceScore float64
	ExpiresAt       *time.Time
	IsPermanent     bool
	CampaignID      string
	UserID          string
}

// Add records a detection as an idempotent merge keyed by IP. The store
// write is the primary mutation and its error propagates; the audit
// event, the reputation update, and the cache invalidation are side
// effects that are logged but never fail the caller.
func (e *Engine) Add(ctx context.Context, p AddParams) (domain.BlacklistEntry, error) {
	ip, err := NormalizeIP(p.IP)
	if err != nil {
		return domain.BlacklistEntry{}, err
	}

	entry, created, err := e.store.UpsertEntry(ctx, database.UpsertEntryParams{
		IP:              ip,
		Reason:          p.Reason,
		DetectionType:   p.DetectionType,
		ConfidenceScore: p.ConfidenceScore,
		ExpiresAt:       p.ExpiresAt,
		IsPermanent:     p.IsPermanent,
		CampaignID:      p.CampaignID,
		UserID:          p.UserID,
	})
	if err != nil {
		return domain.BlacklistEntry{}, fmt.Errorf("blacklist: upsert entry: %w", err)
	}

	eventType := domain.EventTypeUpdated
	if created {
		eventType = domain.EventTypeAdded
	}
	e.appendEvent(ctx, ip, eventType, p.Reason, p.UserID, p.CampaignID, map[string]any{
		"detection_type":   p.DetectionType,
		"confidence_score": p.ConfidenceScore,
		"detection_count":  entry.DetectionCount,
	})

	if err := e.store.ApplyDetection(ctx, ip, p.DetectionType, p.ConfidenceScore); err != nil {
		log.Error("Failed to update ip reputation", "ip", ip, "error", err)
	}

	e.invalidate(ctx, ip)

	return entry, nil
}

// Remove deletes the row for the IP and reports whether one existed.
// Removing an unknown IP is a no-op: no event, no invalidation.
func (e *Engine) Remove(ctx context.Context, rawIP, userID string) (bool, error) {
	ip, err := NormalizeIP(rawIP)
	if err != nil {
		return false, err
	}

	found, err := e.store.DeleteEntry(ctx, ip)
	if err != nil {
		return false, fmt.Errorf("blacklist: delete entry: %w", err)
	}
	if !found {
		return false, nil
	}

	e.appendEvent(ctx, ip, domain.EventTypeRemoved, "", userID, "", nil)
	e.invalidate(ctx, ip)

	return true, nil
}

// BulkParams are the shared parameters applied to every IP of a bulk add.
type BulkParams struct {
	Reason          string
	DetectionType   string
	ConfidenceScore float64
	ExpiresAt       *time.Time
	IsPermanent     bool
	CampaignID      string
	UserID          string
}

// BulkUpdate applies one action to many IPs. Every literal is validated
// before any processing: a single malformed entry rejects the whole
// batch. Past validation, items are independent; one failing IP is
// reported in its result entry and the rest continue.
func (e *Engine) BulkUpdate(ctx context.Context, action string, ips []string, shared BulkParams) (dto.BulkResult, error) {
	if action != ActionAdd && action != ActionRemove {
		return dto.BulkResult{}, fmt.Errorf("blacklist: unknown bulk action %q", action)
	}
	if len(ips) == 0 {
		return dto.BulkResult{}, fmt.Errorf("blacklist: empty ip list")
	}
	if len(ips) > e.bulkLimit {
		return dto.BulkResult{}, fmt.Errorf("blacklist: bulk request of %d ips exceeds limit %d", len(ips), e.bulkLimit)
	}

	normalized := make([]string, len(ips))
	for i, raw := range ips {
		ip, err := NormalizeIP(raw)
		if err != nil {
			return dto.BulkResult{}, err
		}
		normalized[i] = ip
	}

	result := dto.BulkResult{
		Results: make([]dto.BulkItemResult, 0, len(normalized)),
		Summary: dto.BulkSummary{Total: len(normalized)},
	}

	for _, ip := range normalized {
		item := dto.BulkItemResult{IP: ip}

		switch action {
		case ActionAdd:
			entry, err := e.Add(ctx, AddParams{
				IP:              ip,
				Reason:          shared.Reason,
				DetectionType:   shared.DetectionType,
				ConfidenceScore: shared.ConfidenceScore,
				ExpiresAt:       shared.ExpiresAt,
				IsPermanent:     shared.IsPermanent,
				CampaignID:      shared.CampaignID,
				UserID:          shared.UserID,
			})
			switch {
			case err != nil:
				item.Status = dto.BulkStatusError
				item.Error = err.Error()
			case entry.DetectionCount == 1:
				item.Status = dto.BulkStatusAdded
			default:
				item.Status = dto.BulkStatusUpdated
			}
		case ActionRemove:
			found, err := e.Remove(ctx, ip, shared.UserID)
			switch {
			case err != nil:
				item.Status = dto.BulkStatusError
				item.Error = err.Error()
			case found:
				item.Status = dto.BulkStatusRemoved
			default:
				item.Status = dto.BulkStatusNotFound
			}
		}

		if item.Status == dto.BulkStatusError {
			result.Summary.Failed++
		} else {
			result.Summary.Successful++
		}
		result.Results = append(result.Results, item)
	}

	return result, nil
}

// List returns one page of active entries, newest detection first.
func (e *Engine) List(ctx context.Context, q database.ListQuery) (dto.BlacklistPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}

	entries, total, err := e.store.ListEntries(ctx, q)
	if err != nil {
		return dto.BlacklistPage{}, fmt.Errorf("blacklist: list entries: %w", err)
	}

	return dto.BlacklistPage{
		Entries: entries,
		Total:   total,
		Page:    q.Page,
		Limit:   q.Limit,
	}, nil
}

// Reputation returns the reputation row for the IP, nil when none exists.
func (e *Engine) Reputation(ctx context.Context, rawIP string) (*domain.IPReputation, error) {
	ip, err := NormalizeIP(rawIP)
	if err != nil {
		return nil, err
	}
	return e.store.GetReputation(ctx, ip)
}

// Statistics returns the aggregate snapshot counters.
func (e *Engine) Statistics(ctx context.Context) (dto.BlacklistStats, error) {
	return e.store.EntryStatistics(ctx)
}

// CleanExpired deletes all non-permanent rows whose expiry has passed and
// returns the exact count. The whole cache namespace is flushed after the
// sweep; per-key invalidation would be wasteful at this granularity.
func (e *Engine) CleanExpired(ctx context.Context) (int64, error) {
	deleted, err := e.store.DeleteExpired(ctx, e.sweepBatchSize)
	if err != nil {
		return deleted, fmt.Errorf("blacklist: delete expired: %w", err)
	}

	if err := e.cache.FlushAll(ctx); err != nil {
		log.Error("Failed to flush blacklist cache after sweep", "error", err)
	}

	return deleted, nil
}

func (e *Engine) appendEvent(ctx context.Context, ip, eventType, reason, userID, campaignID string, metadata map[string]any) {
	if e.enricher != nil {
		if tags := e.enricher.Annotate(ip); len(tags) > 0 {
			if metadata == nil {
				metadata = make(map[string]any, len(tags))
			}
			for k, v := range tags {
				metadata[k] = v
			}
		}
	}

	var payload []byte
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			log.Warn("Failed to encode event metadata", "ip", ip, "error", err)
		} else {
			payload = data
		}
	}

	event := domain.BlacklistEvent{
		IP:         ip,
		EventType:  eventType,
		Reason:     reason,
		UserID:     userID,
		CampaignID: campaignID,
		Metadata:   payload,
	}

	if err := e.store.AppendEvent(ctx, event); err != nil {
		log.Error("Failed to append blacklist event", "ip", ip, "event", eventType, "error", err)
	}
}

func (e *Engine) invalidate(ctx context.Context, ip string) {
	if err := e.cache.Invalidate(ctx, ip); err != nil {
		log.Error("Failed to invalidate blacklist cache key", "ip", ip, "error", err)
	}
}
