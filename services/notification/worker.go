package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"fundwave/pkg/mailer"
	"fundwave/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Worker struct {
	svc    *Service
	mailer mailer.Mailer
}

func NewWorker(svc *Service, m mailer.Mailer) *Worker {
	return &Worker{svc: svc, mailer: m}
}

func registerHandlers(mux *asynq.ServeMux, w *Worker) {
	mux.HandleFunc(taskname.NotificationCreate, w.HandleNotificationCreate)
	mux.HandleFunc(taskname.EmailSend, w.HandleEmailSend)
}

func (w *Worker) HandleNotificationCreate(ctx context.Context, t *asynq.Task) error {
	var p NotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zap.L().Error("invalid notification payload", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if _, err := w.svc.Create(ctx, p); err != nil {
		return err
	}
	return nil
}

func (w *Worker) HandleEmailSend(ctx context.Context, t *asynq.Task) error {
	var m mailer.Message
	if err := json.Unmarshal(t.Payload(), &m); err != nil {
		zap.L().Error("invalid email payload", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.mailer.Send(ctx, m); err != nil {
		zap.L().Warn("failed to send email", zap.String("subject", m.Subject), zap.Error(err))
		return err
	}
	return nil
}
