package config

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"buildadvisor.db"`

	Supabase SupabaseConfig
	Stripe   StripeConfig
	Gemini   GeminiConfig

	// PublicBaseURL is the origin used for checkout success/cancel redirects.
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	PromptsJSON     string        `env:"PROMPTS_JSON"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s"`
	DisplayTimezone string        `env:"DISPLAY_TIMEZONE" envDefault:"Asia/Tokyo"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type SupabaseConfig struct {
	URL          string `env:"SUPABASE_URL"`
	JWTSecret    string `env:"SUPABASE_JWT_SECRET"`
	JWKSEnabled  bool   `env:"SUPABASE_JWKS_ENABLED" envDefault:"false"`
	JWKSURL      string `env:"SUPABASE_JWKS_URL"`
	AuthDisabled bool   `env:"AUTH_DISABLED" envDefault:"false"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceBlue     string `env:"STRIPE_PRICE_BLUE"`
	PriceGreen    string `env:"STRIPE_PRICE_GREEN"`
	PriceGold     string `env:"STRIPE_PRICE_GOLD"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	Model   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-pro"`
	BaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom parses the given variables only. Used by tests and tools.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finalize(cfg *Config) error {
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.Supabase.URL = strings.TrimRight(strings.TrimSpace(cfg.Supabase.URL), "/")
	return validateConfig(cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must not be empty")
	}
	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	if cfg.PromptsJSON != "" {
		if _, err := ParsePrompts(cfg.PromptsJSON); err != nil {
			return err
		}
	}

	if isProdLike(cfg.AppEnv) {
		if cfg.Supabase.AuthDisabled {
			return fmt.Errorf("in prod/release AUTH_DISABLED must be false")
		}
		if cfg.Supabase.JWTSecret == "" && !cfg.Supabase.JWKSEnabled {
			return fmt.Errorf("in prod/release SUPABASE_JWT_SECRET or SUPABASE_JWKS_ENABLED must be set")
		}
		if cfg.Stripe.SecretKey == "" {
			return fmt.Errorf("in prod/release STRIPE_SECRET_KEY must be set")
		}
		if cfg.Gemini.APIKey == "" {
			return fmt.Errorf("in prod/release GEMINI_API_KEY must be set")
		}
	}
	if cfg.Supabase.JWKSEnabled && cfg.Supabase.URL == "" && cfg.Supabase.JWKSURL == "" {
		return fmt.Errorf("SUPABASE_URL or SUPABASE_JWKS_URL is required when SUPABASE_JWKS_ENABLED=true")
	}

	return nil
}

// PriceIDs returns the configured price id per lower-cased plan name.
// Plans without a price are omitted.
func (c *Config) PriceIDs() map[string]string {
	out := map[string]string{}
	for plan, id := range map[string]string{
		"blue":  c.Stripe.PriceBlue,
		"green": c.Stripe.PriceGreen,
		"gold":  c.Stripe.PriceGold,
	} {
		if id = strings.TrimSpace(id); id != "" {
			out[plan] = id
		}
	}
	return out
}

// JWKSURL returns the Supabase JWKS endpoint, honouring an explicit override.
func (c *Config) JWKSURL() string {
	if c.Supabase.JWKSURL != "" {
		return c.Supabase.JWKSURL
	}
	return c.Supabase.URL + "/auth/v1/.well-known/jwks.json"
}

func (c *Config) Development() bool {
	return !isProdLike(c.AppEnv)
}

type promptEntry struct {
	SystemPrompt string `json:"systemPrompt"`
}

// ParsePrompts decodes PROMPTS_JSON ({"blue":{"systemPrompt":"..."}}) into a
// map keyed by lower-cased plan name. Entries without a prompt are dropped.
func ParsePrompts(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]string{}, nil
	}
	var parsed map[string]promptEntry
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("PROMPTS_JSON is not valid JSON: %w", err)
	}
	out := make(map[string]string, len(parsed))
	for plan, entry := range parsed {
		if entry.SystemPrompt == "" {
			continue
		}
		out[strings.ToLower(plan)] = entry.SystemPrompt
	}
	return out, nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}
