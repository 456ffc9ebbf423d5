package store

import (
	"context"
	"database/sql"
	"fmt"

	"webhook-gateway/internal/models"
)

// UpsertOrder writes an order snapshot with a monotonicity condition:
// the row is inserted if absent, and updated only when the incoming
// update_time is strictly newer than the stored one. It returns
// applied=false when the write was dropped as stale.
func (s *Store) UpsertOrder(ctx context.Context, o *models.OrderSnapshot) (applied bool, err error) {
	query := `
		INSERT INTO orders (order_id, shop_id, status, items, total_amount, raw_payload, update_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			shop_id = EXCLUDED.shop_id,
			status = EXCLUDED.status,
			items = EXCLUDED.items,
			total_amount = EXCLUDED.total_amount,
			raw_payload = EXCLUDED.raw_payload,
			update_time = EXCLUDED.update_time,
			updated_at = NOW()
		WHERE orders.update_time < EXCLUDED.update_time`

	res, err := s.db.ExecContext(ctx, query,
		o.OrderID, o.ShopID, o.Status, o.Items, o.TotalAmount, o.RawPayload, o.UpdateTime)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetOrderByID retrieves an order snapshot by ID
func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*models.OrderSnapshot, error) {
	var order models.OrderSnapshot
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByShop retrieves order snapshots for a shop, newest first.
func (s *Store) GetOrdersByShop(ctx context.Context, shopID string, limit, offset int) ([]models.OrderSnapshot, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var orders []models.OrderSnapshot
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE shop_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3",
		shopID, limit, offset)
	return orders, err
}

// ClaimEvent attempts an insert-if-absent of a processing record for
// the event identity. Among N concurrent identical deliveries exactly
// one caller observes claimed=true; the unique constraint on
// event_identity arbitrates, not application locking.
func (s *Store) ClaimEvent(ctx context.Context, rec *models.ProcessingRecord) (claimed bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_records (event_identity, shop_id, event_type, order_id, raw_payload, received_at, processed, success)
		VALUES ($1, $2, $3, $4, $5, NOW(), FALSE, FALSE)
		ON CONFLICT (event_identity) DO NOTHING`,
		rec.EventIdentity, rec.ShopID, rec.EventType, rec.OrderID, rec.RawPayload)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetProcessingRecord retrieves the processing record for an identity.
// Returns nil when no record exists.
func (s *Store) GetProcessingRecord(ctx context.Context, identity string) (*models.ProcessingRecord, error) {
	var rec models.ProcessingRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM processing_records WHERE event_identity = $1", identity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordOutcome marks the claimed record with its processing result.
func (s *Store) RecordOutcome(ctx context.Context, identity string, success bool, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_records
		SET processed = TRUE, success = $1, error_message = $2
		WHERE event_identity = $3`,
		success, errorMessage, identity)
	return err
}

// GetUnprocessed returns records left in an indeterminate state, oldest
// first. The reconciliation sweep uses this to retry orders stranded by
// a crash between claim and outcome, or by a failed processing run. The
// one-minute grace keeps the sweep off claims that are still in flight.
func (s *Store) GetUnprocessed(ctx context.Context, limit int) ([]models.ProcessingRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var recs []models.ProcessingRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT * FROM processing_records
		WHERE (processed = FALSE OR success = FALSE)
		  AND received_at < NOW() - INTERVAL '60 seconds'
		ORDER BY received_at ASC LIMIT $1`, limit)
	return recs, err
}
