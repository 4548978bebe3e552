package payment

import (
	"context"
	"time"

	"fundwave/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reconcileBatch = 100

// Reconciler periodically polls the vendor for pending payment codes so a
// lost webhook never leaves a paid donation unbooked.
type Reconciler struct {
	service  *Service
	interval time.Duration
}

func NewReconciler(svc *Service, cfg *config.Config) *Reconciler {
	return &Reconciler{service: svc, interval: cfg.Monime.ReconcileInterval}
}

func StartReconciler(lc fx.Lifecycle, r *Reconciler) {
	if r.interval <= 0 {
		zap.L().Info("[Reconciler] disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				r.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func (r *Reconciler) run(ctx context.Context) {
	zap.L().Info("[Reconciler] started", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Reconciler] stopped")
			return
		}
	}
}

// RunOnce syncs one batch of pending payments and returns how many were
// applied.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	start := time.Now()

	payments, err := r.service.pending(ctx, reconcileBatch)
	if err != nil {
		zap.L().Error("[Reconciler] failed to load pending payments", zap.Error(err))
		return 0
	}

	applied := 0
	for _, p := range payments {
		if ctx.Err() != nil {
			break
		}
		res, err := r.service.SyncPayment(ctx, p.ID)
		if err != nil {
			zap.L().Warn("[Reconciler] sync failed", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		if res.Applied {
			applied++
		}
	}

	zap.L().Info("[Reconciler] finished",
		zap.Int("checked", len(payments)),
		zap.Int("applied", applied),
		zap.Duration("duration", time.Since(start)),
	)
	return applied
}
