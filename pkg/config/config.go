package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Platform struct {
		Name          string `mapstructure:"NAME"`
		Currency      string `mapstructure:"CURRENCY"`
		AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
		AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	} `mapstructure:"PLATFORM"`
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Session struct {
		CookieName string        `mapstructure:"COOKIE_NAME"`
		Secret     string        `mapstructure:"SECRET"`
		TTL        time.Duration `mapstructure:"TTL"`
		Secure     bool          `mapstructure:"SECURE"`
	} `mapstructure:"SESSION"`
	Database struct {
		Type           string        `mapstructure:"TYPE"`
		Host           string        `mapstructure:"HOST"`
		Port           string        `mapstructure:"PORT"`
		DBNAME         string        `mapstructure:"DBNAME"`
		User           string        `mapstructure:"USER"`
		Password       string        `mapstructure:"PASSWORD"`
		SSLMode        string        `mapstructure:"SSLMODE"`
		Timezone       string        `mapstructure:"TIMEZONE"`
		Metrics        bool          `mapstructure:"METRICS"`
		// queries slower than this are logged at warn; 0 disables
		SlowThreshold  time.Duration `mapstructure:"SLOW_THRESHOLD"`
		LogSQL         bool          `mapstructure:"LOG_SQL"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Worker struct {
		Enable      bool `mapstructure:"ENABLE"`
		Concurrency int  `mapstructure:"CONCURRENCY"`
	} `mapstructure:"WORKER"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
		PublicURL  string `mapstructure:"PUBLIC_URL"`
	} `mapstructure:"MINIO"`
	Monime struct {
		BaseURL       string        `mapstructure:"BASE_URL"`
		SpaceID       string        `mapstructure:"SPACE_ID"`
		AccessToken   string        `mapstructure:"ACCESS_TOKEN"`
		WebhookSecret string        `mapstructure:"WEBHOOK_SECRET"`
		Timeout       time.Duration `mapstructure:"TIMEOUT"`
		// ReconcileInterval is how often pending payments are polled; zero disables it.
		ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	} `mapstructure:"MONIME"`
	SMTP struct {
		Host     string `mapstructure:"HOST"`
		Port     int    `mapstructure:"PORT"`
		Username string `mapstructure:"USERNAME"`
		Password string `mapstructure:"PASSWORD"`
		From     string `mapstructure:"FROM"`
	} `mapstructure:"SMTP"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load(".")
	if err != nil {
		return nil, err
	}

	if p.Vault != nil {
		if err := overlayVault(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, cfg.Validate()
}

// Load reads config.yaml from the given paths, letting environment variables
// override any key (DATABASE.HOST -> DATABASE_HOST).
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		zap.L().Warn("config.yaml not found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "fundwave")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("PLATFORM.NAME", "FundWaveSL")
	v.SetDefault("PLATFORM.CURRENCY", "SLE")
	v.SetDefault("PLATFORM.ADMIN_EMAIL", "")
	v.SetDefault("PLATFORM.ADMIN_PASSWORD", "")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("TLS.ENABLE", false)
	v.SetDefault("OTEL.ADDR", "")
	v.SetDefault("PYROSCOPE.ADDR", "")
	v.SetDefault("SESSION.COOKIE_NAME", "accessToken")
	v.SetDefault("SESSION.SECRET", "")
	v.SetDefault("SESSION.TTL", 24*time.Hour)
	v.SetDefault("SESSION.SECURE", false)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", "5432")
	v.SetDefault("DATABASE.DBNAME", "fundwave")
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.METRICS", false)
	v.SetDefault("DATABASE.SLOW_THRESHOLD", 200*time.Millisecond)
	v.SetDefault("DATABASE.LOG_SQL", false)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("WORKER.ENABLE", true)
	v.SetDefault("WORKER.CONCURRENCY", 10)
	v.SetDefault("ACCESS_CONTROL.MODEL", "")
	v.SetDefault("ACCESS_CONTROL.POLICY", "")
	v.SetDefault("FLAGSMITH.ADDR", "")
	v.SetDefault("FLAGSMITH.API_KEY", "")
	v.SetDefault("MINIO.ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO.ACCESS_KEY", "")
	v.SetDefault("MINIO.SECRET_KEY", "")
	v.SetDefault("MINIO.SECURE", false)
	v.SetDefault("MINIO.BUCKET_NAME", "fundwave")
	v.SetDefault("MINIO.PUBLIC_URL", "")
	v.SetDefault("MONIME.BASE_URL", "https://api.monime.io")
	v.SetDefault("MONIME.SPACE_ID", "")
	v.SetDefault("MONIME.ACCESS_TOKEN", "")
	v.SetDefault("MONIME.WEBHOOK_SECRET", "")
	v.SetDefault("MONIME.TIMEOUT", 15*time.Second)
	v.SetDefault("MONIME.RECONCILE_INTERVAL", 5*time.Minute)
	v.SetDefault("SMTP.HOST", "")
	v.SetDefault("SMTP.PORT", 587)
	v.SetDefault("SMTP.USERNAME", "")
	v.SetDefault("SMTP.PASSWORD", "")
	v.SetDefault("SMTP.FROM", "no-reply@fundwave.sl")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION.SECRET must be at least 32 bytes")
	}
	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return fmt.Errorf("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}
	// unsigned webhooks would let anyone mark payments completed
	if c.IsProduction() && c.Monime.WebhookSecret == "" {
		return fmt.Errorf("MONIME.WEBHOOK_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func overlayVault(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return err
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Session.Secret = get("session_secret", cfg.Session.Secret)
	cfg.Monime.AccessToken = get("monime_access_token", cfg.Monime.AccessToken)
	cfg.Monime.WebhookSecret = get("monime_webhook_secret", cfg.Monime.WebhookSecret)
	cfg.SMTP.Password = get("smtp_password", cfg.SMTP.Password)
	cfg.Minio.SecretKey = get("minio_secret_key", cfg.Minio.SecretKey)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)

	return nil
}
