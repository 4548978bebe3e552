package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"fundwave/pkg/access"
	"fundwave/pkg/auth"
	"fundwave/pkg/config"
	"fundwave/pkg/db"
	"fundwave/pkg/featureflags"
	"fundwave/pkg/gen"
	"fundwave/pkg/hashistack/secretmanager"
	"fundwave/pkg/health"
	"fundwave/pkg/httpapi"
	"fundwave/pkg/logger"
	"fundwave/pkg/mailer"
	"fundwave/pkg/minio"
	"fundwave/pkg/monime"
	"fundwave/pkg/otelcol"
	"fundwave/pkg/profiling"
	"fundwave/pkg/redis"
	"fundwave/pkg/sequence"
	"fundwave/pkg/server"
	"fundwave/pkg/task"
	"fundwave/services/bootstrap"
	"fundwave/services/campaign"
	"fundwave/services/engagement"
	"fundwave/services/kyc"
	"fundwave/services/ledger"
	"fundwave/services/notification"
	"fundwave/services/payment"
	"fundwave/services/user"
	"fundwave/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		task.Client,
		task.Server,
		auth.Module,
		access.Module,
		health.Module,
		httpapi.Module,
		minio.Client,
		mailer.Module,
		monime.Module,
		featureflags.Module,

		user.Module,
		ledger.Module,
		notification.Module,
		notification.WorkerModule,
		campaign.Module,
		payment.Module,
		payment.ReconcilerModule,
		kyc.Module,
		engagement.Module,
		withdrawal.Module,
		bootstrap.Module,

		server.ProvideHTTPServer,
		fxLogger,
	}

	// Secrets are overlaid from Vault only when it is configured.
	if os.Getenv("VAULT_ADDR") != "" {
		opts = append(opts, secretmanager.Module)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
