package notification

import (
	"encoding/json"

	"fundwave/pkg/mailer"
	"fundwave/pkg/taskname"

	"github.com/hibiken/asynq"
)

type NotifyPayload struct {
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`
	Type       Type   `json:"type"`
	Message    string `json:"message"`
}

func NewNotificationTask(p NotifyPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationCreate, payload, asynq.MaxRetry(5)), nil
}

func NewEmailTask(m mailer.Message) (*asynq.Task, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.EmailSend, payload, asynq.Queue("low"), asynq.MaxRetry(3)), nil
}
