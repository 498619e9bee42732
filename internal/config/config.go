// Package config loads service settings from the environment.
//
// Values come from, in order of precedence: real environment variables,
// a .env file in the working directory (if present), then the defaults
// below. Keys are the upper-case environment names, e.g. JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        int    `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	BaseURL     string `mapstructure:"base_url"`
	LogLevel    string `mapstructure:"log_level"`

	JWTSecret                    string `mapstructure:"jwt_secret"`
	AccessTokenExpireMinutes     int    `mapstructure:"access_token_expire_minutes"`
	VerificationTokenExpireHours int    `mapstructure:"verification_token_expire_hours"`

	RedisURL        string        `mapstructure:"redis_url"`
	SessionCacheTTL time.Duration `mapstructure:"session_cache_ttl"`

	MailServer    string `mapstructure:"mail_server"`
	MailPort      int    `mapstructure:"mail_port"`
	MailUsername  string `mapstructure:"mail_username"`
	MailPassword  string `mapstructure:"mail_password"`
	MailFrom      string `mapstructure:"mail_from"`
	MailFromName  string `mapstructure:"mail_from_name"`
	MailQueueSize int    `mapstructure:"mail_queue_size"`

	AvatarDir       string `mapstructure:"avatar_dir"`
	AvatarAdminOnly bool   `mapstructure:"avatar_admin_only"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3Region        string `mapstructure:"s3_region"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	S3AccessKey     string `mapstructure:"s3_access_key"`
	S3SecretKey     string `mapstructure:"s3_secret_key"`

	CORSAllowedOrigins   string `mapstructure:"cors_allowed_origins"`
	MeRateLimitPerMinute int    `mapstructure:"me_rate_limit_per_minute"`
}

var defaults = map[string]any{
	"port":                            8080,
	"database_url":                    "data/contacts.db",
	"base_url":                        "",
	"log_level":                       "info",
	"jwt_secret":                      "",
	"access_token_expire_minutes":     30,
	"verification_token_expire_hours": 24,
	"redis_url":                       "",
	"session_cache_ttl":               time.Hour,
	"mail_server":                     "",
	"mail_port":                       587,
	"mail_username":                   "",
	"mail_password":                   "",
	"mail_from":                       "",
	"mail_from_name":                  "Contacts API",
	"mail_queue_size":                 100,
	"avatar_dir":                      "avatars",
	"avatar_admin_only":               false,
	"s3_bucket":                       "",
	"s3_region":                       "us-east-1",
	"s3_endpoint":                     "",
	"s3_access_key":                   "",
	"s3_secret_key":                   "",
	"cors_allowed_origins":            "*",
	"me_rate_limit_per_minute":        10,
}

// Load reads envFiles (default ".env") into the process environment and
// builds a Config from it. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.VerificationTokenExpireHours <= 0 {
		errs = append(errs, errors.New("VERIFICATION_TOKEN_EXPIRE_HOURS must be positive"))
	}
	if c.SessionCacheTTL <= 0 {
		errs = append(errs, errors.New("SESSION_CACHE_TTL must be positive"))
	}
	if c.MeRateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("ME_RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) VerificationTTL() time.Duration {
	return time.Duration(c.VerificationTokenExpireHours) * time.Hour
}

// UsesPostgres reports whether DATABASE_URL points at Postgres rather than
// a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) SMTPEnabled() bool { return c.MailServer != "" }

func (c *Config) S3Enabled() bool { return c.S3Bucket != "" }

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return l, nil
}
