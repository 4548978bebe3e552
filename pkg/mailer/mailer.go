package mailer

import (
	"context"
	"fmt"

	"fundwave/pkg/config"

	"github.com/wneessen/go-mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mailer", fx.Provide(New))

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a logging mailer when SMTP.HOST is empty.
func New(cfg *config.Config) (Mailer, error) {
	if cfg.SMTP.Host == "" {
		zap.L().Warn("SMTP.HOST not set, emails are logged instead of sent")
		return LogMailer{}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTP.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTP.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTP.Username),
			mail.WithPassword(cfg.SMTP.Password),
		)
	}

	client, err := mail.NewClient(cfg.SMTP.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: new client: %w", err)
	}

	return &SMTP{client: client, from: cfg.SMTP.From}, nil
}

type SMTP struct {
	client *mail.Client
	from   string
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("mailer: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mailer: to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	zap.L().Info("email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
