package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StorageDriver      string        `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	TranscriptCacheTTL time.Duration `mapstructure:"TRANSCRIPT_CACHE_TTL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL        string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	InferenceProvider  string        `mapstructure:"INFERENCE_PROVIDER"`
	InferenceURL       string        `mapstructure:"INFERENCE_URL"`
	InferenceTimeout   time.Duration `mapstructure:"INFERENCE_TIMEOUT"`
	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel        string        `mapstructure:"OPENAI_MODEL"`
}

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Inference providers.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

var envKeys = []string{
	"PORT", "ENV", "STORAGE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "TRANSCRIPT_CACHE_TTL",
	"JWT_SECRET", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"INFERENCE_PROVIDER", "INFERENCE_URL", "INFERENCE_TIMEOUT",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TRANSCRIPT_CACHE_TTL", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("INFERENCE_PROVIDER", ProviderHTTP)
	v.SetDefault("INFERENCE_TIMEOUT", "15s")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")

	// Unmarshal only sees keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.StorageDriver == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is %q", StoragePostgres)
	}

	if cfg.IsDev() {
		log.Println("WARNING: running with ENV=development; requests without a bearer token get admin access.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// either JWT_SECRET or a JWKS source must be configured so that bearer tokens
// are actually verified.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}

	if !c.IsDev() && c.JWTSecret == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("JWT_SECRET or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
	}

	switch c.InferenceProvider {
	case ProviderHTTP, ProviderOpenAI:
	default:
		return fmt.Errorf("INFERENCE_PROVIDER must be %q or %q, got %q", ProviderHTTP, ProviderOpenAI, c.InferenceProvider)
	}

	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.InferenceTimeout)
	}
	if c.RequestTimeout > 0 && c.RequestTimeout <= c.InferenceTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed INFERENCE_TIMEOUT (%s) so fallback replies can be stored",
			c.RequestTimeout, c.InferenceTimeout)
	}

	return nil
}
