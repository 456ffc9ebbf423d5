package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"webhook-gateway/internal/models"
	"webhook-gateway/internal/util"

	"go.uber.org/zap"
)

// ClaimStore is the durable side of deduplication: an atomic
// insert-if-absent keyed by event identity.
type ClaimStore interface {
	ClaimEvent(ctx context.Context, rec *models.ProcessingRecord) (bool, error)
	GetProcessingRecord(ctx context.Context, identity string) (*models.ProcessingRecord, error)
	RecordOutcome(ctx context.Context, identity string, success bool, errorMessage string) error
}

// SucceededCache is the fast path for pure redeliveries. A cache miss
// or error falls through to the store; the cache is never authoritative.
type SucceededCache interface {
	MarkSucceeded(ctx context.Context, identity string) error
	IsSucceeded(ctx context.Context, identity string) (bool, error)
}

// IdentityOf computes the canonical identity of a webhook event: a
// digest over the fields that define "the same logical update". Two
// deliveries differing only in transport-level detail (whitespace,
// header order, retransmission) yield the same identity.
func IdentityOf(ev *models.WebhookEvent) string {
	canonical := fmt.Sprintf("%d|%s|%s|%s",
		ev.Timestamp,
		strings.TrimSpace(ev.Type),
		strings.TrimSpace(ev.ShopID),
		strings.TrimSpace(ev.Data.OrderID))

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Deduplicator enforces at-most-one successful processing per event
// identity across concurrent and redelivered webhooks.
type Deduplicator struct {
	store  ClaimStore
	cache  SucceededCache
	logger *zap.Logger
}

// NewDeduplicator creates a deduplicator. cache may be nil, in which
// case every check goes to the store.
func NewDeduplicator(store ClaimStore, cache SucceededCache) *Deduplicator {
	return &Deduplicator{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// AlreadySucceeded reports whether this identity has already been
// processed successfully, consulting the cache before the store.
func (d *Deduplicator) AlreadySucceeded(ctx context.Context, identity string) (bool, error) {
	if d.cache != nil {
		hit, err := d.cache.IsSucceeded(ctx, identity)
		if err != nil {
			d.logger.Warn("Dedup cache check failed, falling back to store",
				zap.String("event_identity", identity),
				zap.Error(err))
		} else if hit {
			return true, nil
		}
	}

	rec, err := d.store.GetProcessingRecord(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to load processing record: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	return rec.Processed && rec.Success, nil
}

// TryClaim attempts to claim the identity for processing. Exactly one
// of N concurrent identical deliveries observes claimed=true; the rest
// must treat the event as already in flight. rawBody is stored with the
// claim so the reconciliation sweep can rebuild the order snapshot if
// this delivery never reaches the persist step.
func (d *Deduplicator) TryClaim(ctx context.Context, ev *models.WebhookEvent, identity string, rawBody []byte) (bool, error) {
	rec := &models.ProcessingRecord{
		EventIdentity: identity,
		ShopID:        ev.ShopID,
		EventType:     ev.Type,
		OrderID:       ev.Data.OrderID,
		RawPayload:    rawBody,
	}

	claimed, err := d.store.ClaimEvent(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return claimed, nil
}

// RecordOutcome stores the processing result for a claimed identity and,
// on success, primes the fast-path cache.
func (d *Deduplicator) RecordOutcome(ctx context.Context, identity string, success bool, errorMessage string) error {
	if err := d.store.RecordOutcome(ctx, identity, success, errorMessage); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	if success && d.cache != nil {
		if err := d.cache.MarkSucceeded(ctx, identity); err != nil {
			d.logger.Warn("Failed to prime dedup cache",
				zap.String("event_identity", identity),
				zap.Error(err))
		}
	}
	return nil
}
