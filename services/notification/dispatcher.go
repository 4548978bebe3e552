package notification

import (
	"context"

	"fundwave/pkg/mailer"
	"fundwave/pkg/task"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher queues side-channel deliveries. Callers treat every error as
// non-fatal: a failed dispatch never undoes the write that triggered it.
type Dispatcher interface {
	Notify(ctx context.Context, p NotifyPayload) error
	NotifyMany(ctx context.Context, userIDs []string, p NotifyPayload) error
	SendEmail(ctx context.Context, m mailer.Message) error
}

type QueueDispatcher struct {
	enqueuer task.Enqueuer
}

func NewQueueDispatcher(e task.Enqueuer) Dispatcher {
	return &QueueDispatcher{enqueuer: e}
}

func (d *QueueDispatcher) Notify(ctx context.Context, p NotifyPayload) error {
	if p.UserID == "" {
		return nil
	}

	t, err := NewNotificationTask(p)
	if err != nil {
		return err
	}

	if _, err := d.enqueuer.Enqueue(ctx, t); err != nil {
		zap.L().Warn("failed enqueue notification",
			zap.String("user_id", p.UserID),
			zap.String("type", string(p.Type)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// NotifyMany fans the same notification out to every user, at most eight
// enqueues in flight.
func (d *QueueDispatcher) NotifyMany(ctx context.Context, userIDs []string, p NotifyPayload) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, id := range userIDs {
		n := p
		n.UserID = id
		g.Go(func() error {
			return d.Notify(gctx, n)
		})
	}

	return g.Wait()
}

func (d *QueueDispatcher) SendEmail(ctx context.Context, m mailer.Message) error {
	if m.To == "" {
		return nil
	}

	t, err := NewEmailTask(m)
	if err != nil {
		return err
	}

	if _, err := d.enqueuer.Enqueue(ctx, t); err != nil {
		zap.L().Warn("failed enqueue email", zap.String("subject", m.Subject), zap.Error(err))
		return err
	}
	return nil
}
