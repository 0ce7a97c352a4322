package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string `env:"APP_PORT" envDefault:"8080" validate:"required,numeric"`
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development test staging production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseDSN string `env:"DATABASE_DSN" validate:"required"`

	// Redis is optional; without it key sets are not snapshotted.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	KeysetSnapshotTTL   time.Duration `env:"KEYSET_SNAPSHOT_TTL" envDefault:"24h" validate:"gte=0"`
	KeysetMinRefresh    time.Duration `env:"KEYSET_MIN_REFRESH_INTERVAL" envDefault:"30s" validate:"gte=0"`
	ProviderHTTPTimeout time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	OTELEndpoint string `env:"OTEL_EXPORTER_ENDPOINT" validate:"omitempty,url"`

	Google  GoogleConfig  `envPrefix:"GOOGLE_"`
	Apple   AppleConfig   `envPrefix:"APPLE_"`
	Session SessionConfig
	Client  ClientConfig
}

type GoogleConfig struct {
	ClientID      string `env:"CLIENT_ID" validate:"required"`
	ClientSecret  string `env:"CLIENT_SECRET" validate:"required"`
	RedirectURL   string `env:"REDIRECT_URL" validate:"omitempty,url"`
	AuthURL       string `env:"AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/auth" validate:"url"`
	TokenURL      string `env:"TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token" validate:"url"`
	UserInfoURL   string `env:"USERINFO_URL" envDefault:"https://www.googleapis.com/oauth2/v3/userinfo" validate:"url"`
	CertsURL      string `env:"CERTS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs" validate:"url"`
	VerifyIDToken bool   `env:"VERIFY_ID_TOKEN" envDefault:"true"`
}

type AppleConfig struct {
	ClientID string `env:"CLIENT_ID" validate:"required"`
	Issuer   string `env:"ISSUER" envDefault:"https://appleid.apple.com" validate:"url"`
	KeysURL  string `env:"KEYS_URL" envDefault:"https://appleid.apple.com/auth/keys" validate:"url"`

	// ClockSkew is tolerated on exp, nbf and iat of identity tokens.
	ClockSkew time.Duration `env:"CLOCK_SKEW" envDefault:"30s" validate:"gte=0"`
}

type SessionConfig struct {
	Secret     string        `env:"TOKEN_SECRET" validate:"required,min=32"`
	Issuer     string        `env:"TOKEN_ISSUER" envDefault:"social-auth"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h" validate:"gt=0"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h" validate:"gt=0"`
}

// ClientConfig is returned to clients with every successful login.
type ClientConfig struct {
	StartingCoin                 int64  `env:"STARTING_COIN" envDefault:"1000000" validate:"gt=0"`
	InterstitialCountdown        int    `env:"ADS_INTERSTITIAL_COUNTDOWN" envDefault:"30" validate:"gte=0"`
	InitialInterstitialCountdown int    `env:"ADS_INITIAL_INTERSTITIAL_COUNTDOWN" envDefault:"5" validate:"gte=0"`
	IronSourceKey                string `env:"IRONSOURCE_KEY"`
}

// Values returns the client-visible configuration block.
func (c ClientConfig) Values() map[string]any {
	v := map[string]any{
		"interstitialCountdown":        c.InterstitialCountdown,
		"initialInterstitialCountdown": c.InitialInterstitialCountdown,
	}
	if c.IronSourceKey != "" {
		v["ironSourceKey"] = c.IronSourceKey
	}
	return v
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	return parse(nil)
}

// parse reads environ, or the process environment when environ is nil.
func parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
