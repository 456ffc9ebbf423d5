package worker

import (
	"context"
	"fmt"
	"time"

	"webhook-gateway/internal/models"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/util"

	"go.uber.org/zap"
)

// SweepStore lists processing records stranded between claim and
// outcome.
type SweepStore interface {
	GetUnprocessed(ctx context.Context, limit int) ([]models.ProcessingRecord, error)
}

// Locker provides the distributed lock that keeps concurrent instances
// from sweeping the same records at once.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

const sweepLockKey = "reconcile-sweep"

// Reconciler periodically retries orders whose processing never
// concluded: crashed between claim and outcome, lost the broker
// hand-off, or failed a required step.
type Reconciler struct {
	store    SweepStore
	repo     service.Repository
	runner   *service.Runner
	locker   Locker
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// NewReconciler creates the reconciliation sweep worker.
func NewReconciler(store SweepStore, repo service.Repository, runner *service.Runner, locker Locker, interval time.Duration, batch int) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		store:    store,
		repo:     repo,
		runner:   runner,
		locker:   locker,
		interval: interval,
		batch:    batch,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting reconciliation sweep", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciliation sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	if r.locker != nil {
		acquired, err := r.locker.AcquireLock(ctx, sweepLockKey, r.interval)
		if err != nil {
			r.logger.Warn("Sweep lock check failed, skipping cycle", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := r.locker.ReleaseLock(ctx, sweepLockKey); err != nil {
				r.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	util.ReconcileSweepsTotal.Inc()

	recs, err := r.store.GetUnprocessed(ctx, r.batch)
	if err != nil {
		r.logger.Error("Failed to list unprocessed records", zap.Error(err))
		return
	}
	if len(recs) == 0 {
		return
	}

	r.logger.Info("Reconciling stranded records", zap.Int("count", len(recs)))

	for _, rec := range recs {
		order, err := r.repo.GetOrderByID(ctx, rec.OrderID)
		if err != nil {
			// The original delivery crashed or failed between claim and
			// persist, so the order row was never written. Rebuild it
			// from the payload stored with the claim.
			order, err = r.restoreOrder(ctx, &rec)
			if err != nil {
				r.logger.Error("Failed to restore order for reconciliation",
					zap.String("order_id", rec.OrderID),
					zap.String("event_identity", rec.EventIdentity),
					zap.Error(err))
				continue
			}
		}

		util.ReconcileRetriedTotal.Inc()
		outcome := r.runner.Run(ctx, rec.EventIdentity, order)
		r.logger.Info("Reconciled stranded record",
			zap.String("order_id", rec.OrderID),
			zap.String("outcome", outcome))
	}
}

func (r *Reconciler) restoreOrder(ctx context.Context, rec *models.ProcessingRecord) (*models.OrderSnapshot, error) {
	if len(rec.RawPayload) == 0 {
		return nil, fmt.Errorf("no stored payload for identity %s", rec.EventIdentity)
	}

	order, err := service.SnapshotFromPayload(rec.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild order from stored payload: %w", err)
	}

	if _, err := r.repo.UpsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist rebuilt order: %w", err)
	}

	r.logger.Info("Rebuilt order snapshot from claimed payload",
		zap.String("order_id", order.OrderID),
		zap.String("event_identity", rec.EventIdentity))
	return order, nil
}
