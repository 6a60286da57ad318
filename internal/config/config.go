package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	APIBaseURL     string        `mapstructure:"API_BASE_URL"`
	APITimeout     time.Duration `mapstructure:"API_TIMEOUT"`
	SessionBackend string        `mapstructure:"SESSION_BACKEND"`
	SessionFile    string        `mapstructure:"SESSION_FILE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CookieSecure   bool          `mapstructure:"COOKIE_SECURE"`
	Timezone       string        `mapstructure:"TIMEZONE"`
	UploadMaxBytes int64         `mapstructure:"UPLOAD_MAX_BYTES"`
	TrustProxy     bool          `mapstructure:"TRUST_PROXY"`
}

func Load() (*Config, error) {
	// .env values never override variables already set in the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("API_TIMEOUT", "0s")
	v.SetDefault("SESSION_BACKEND", "file")
	v.SetDefault("SESSION_FILE", "./data/sessions.json")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("UPLOAD_MAX_BYTES", 500*1024*1024)
	v.SetDefault("TRUST_PROXY", false)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("API_TIMEOUT")
	v.BindEnv("SESSION_BACKEND")
	v.BindEnv("SESSION_FILE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("COOKIE_SECURE")
	v.BindEnv("TIMEZONE")
	v.BindEnv("UPLOAD_MAX_BYTES")
	v.BindEnv("TRUST_PROXY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the console is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the calendar used for date-only filters. Unknown zone
// names fall back to the process local zone; Validate reports them.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks that the configuration is usable. The postgres session
// backend needs DATABASE_URL, and production consoles must set secure
// cookies because the session cookie is the only credential the browser holds.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}

	switch c.SessionBackend {
	case "file":
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE is required when SESSION_BACKEND is \"file\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SESSION_BACKEND is \"postgres\"")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be \"file\" or \"postgres\", got %q", c.SessionBackend)
	}

	if c.IsProduction() && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true in production")
	}

	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("TIMEZONE is not a known zone: %w", err)
		}
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}

	if c.APITimeout < 0 {
		return fmt.Errorf("API_TIMEOUT must not be negative, got %s", c.APITimeout)
	}

	return nil
}
