package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ApplyInventoryAdjustment records the inventory effect of an order at
// most once, keyed by order_id. Re-running the processing step after a
// crash or an abandoned timeout is a no-op.
func (s *Store) ApplyInventoryAdjustment(ctx context.Context, orderID string, items json.RawMessage) (applied bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (order_id, items, applied_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, items)
	if err != nil {
		return false, fmt.Errorf("failed to apply inventory adjustment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
