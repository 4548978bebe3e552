package bootstrap

import (
	"context"
	"fmt"

	"fundwave/pkg/config"
	"fundwave/services/campaign"
	"fundwave/services/engagement"
	"fundwave/services/ledger"
	"fundwave/services/notification"
	"fundwave/services/payment"
	"fundwave/services/user"
	"fundwave/services/withdrawal"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&user.User{},
		&campaign.Campaign{},
		&payment.Payment{},
		&ledger.LedgerEntry{},
		&notification.Notification{},
		&engagement.Comment{},
		&engagement.Update{},
		&withdrawal.Withdrawal{},
	}
}

type Service struct {
	db     *gorm.DB
	config *config.Config
	users  *user.Service
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
	Users  *user.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		config: p.Config,
		users:  p.Users,
	}
}

// Migrate creates or alters the schema and seeds the platform admin.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	zap.L().Info("[bootstrap] schema migrated", zap.Int("tables", len(Models())))

	platform := s.config.Platform
	if platform.AdminEmail == "" || platform.AdminPassword == "" {
		zap.L().Warn("[bootstrap] PLATFORM.ADMIN_EMAIL or PLATFORM.ADMIN_PASSWORD not set. Skipping admin creation.")
		return nil
	}

	admin, err := s.users.EnsureAdmin(ctx, platform.Name+" Admin", platform.AdminEmail, platform.AdminPassword)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	zap.L().Info("[bootstrap] admin ready", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
	return nil
}
