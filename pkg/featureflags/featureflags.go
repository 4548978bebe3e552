package featureflags

import (
	"context"

	"fundwave/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const (
	// KYCManualReview holds KYC submissions in pending until an admin approves them.
	KYCManualReview = "kyc_manual_review"
	// WithdrawalsPaused stops new creator payouts.
	WithdrawalsPaused = "withdrawals_paused"
)

type FeatureFlag interface {
	IsEnabled(ctx context.Context, identifier, feature string) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

// ProvideFeatureFlag returns a flag source that reports every feature
// disabled when FLAGSMITH.API_KEY is empty.
func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) IsEnabled(ctx context.Context, identifier, feature string) bool {
	if s.client == nil {
		return false
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		zap.L().Warn("flagsmith lookup failed", zap.String("feature", feature), zap.Error(err))
		return false
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return false
	}
	return enabled
}

// Static is a fixed flag set, used by tests and local runs.
type Static map[string]bool

func (s Static) IsEnabled(_ context.Context, _, feature string) bool {
	return s[feature]
}
