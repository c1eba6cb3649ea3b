// Package config maps the process environment onto a typed Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envProduction = "production"

type Config struct {
	Environment string `env:"NODE_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	SiteURL        string   `env:"NEXT_PUBLIC_SITE_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Database Database
	JWT      JWT
	Admin    Admin
	Storage  Storage

	RedisURL       string `env:"REDIS_URL"`
	SentryDSN      string `env:"SENTRY_DSN"`
	CronSecret     string `env:"CRON_SECRET"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"false"`
}

type Database struct {
	URL             string        `env:"DATABASE_URL,required,notEmpty"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"10m"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"false"`
}

type JWT struct {
	AccessSecret  string `env:"JWT_SECRET,required,notEmpty"`
	RefreshSecret string `env:"JWT_REFRESH_SECRET,required,notEmpty"`
}

// Admin seeds the first admin account on startup when both email and password
// are set.
type Admin struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
	Name     string `env:"ADMIN_NAME" envDefault:"Administrador"`
}

type Storage struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"auto"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
}

type Options struct {
	LoadDotEnv bool
}

func Load(options Options) (*Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.IsProduction() && strings.TrimSpace(c.SiteURL) == "" {
		errs = append(errs, errors.New("NEXT_PUBLIC_SITE_URL is required in production"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required together"))
	}
	for _, origin := range c.Origins() {
		if origin == "" {
			errs = append(errs, errors.New("allowed origins must be absolute URLs"))
			break
		}
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), envProduction)
}

func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

// Origins returns the site URL and any extra allowed origins reduced to
// scheme://host[:port]. Entries that cannot be parsed come back empty.
func (c *Config) Origins() []string {
	raw := make([]string, 0, len(c.AllowedOrigins)+1)
	if strings.TrimSpace(c.SiteURL) != "" {
		raw = append(raw, c.SiteURL)
	}
	raw = append(raw, c.AllowedOrigins...)

	seen := make(map[string]struct{}, len(raw))
	origins := make([]string, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		origin := NormalizeOrigin(value)
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}

	return origins
}

// NormalizeOrigin reduces a URL to its lowercase scheme://host[:port] form.
func NormalizeOrigin(value string) string {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host)
}
