package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{AppEnv: "development"}
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.Session.Secret = "short"
	require.ErrorContains(t, cfg.Validate(), "SESSION.SECRET")

	cfg = validConfig()
	cfg.TLS.Enable = true
	require.ErrorContains(t, cfg.Validate(), "TLS")
}

func TestValidateRequiresWebhookSecretInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.AppEnv = "production"
	require.ErrorContains(t, cfg.Validate(), "MONIME.WEBHOOK_SECRET")

	cfg.Monime.WebhookSecret = "whsec_test"
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONIME_WEBHOOK_SECRET", "from-env")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "from-env", cfg.Monime.WebhookSecret)
	require.Positive(t, cfg.Database.SlowThreshold)
}
