package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	DialectSQLite   = "sqlite"
	DialectSQLite3  = "sqlite3"
	DialectPostgres = "postgres"
)

type Config struct {
	Listen   string         `json:"listen,omitempty"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Webhook  WebhookConfig  `json:"webhook"`
	CI       CIConfig       `json:"ci"`
	Feed     FeedConfig     `json:"feed"`
	Store    StoreConfig    `json:"store"`
	Publish  PublishConfig  `json:"publish"`
}

type DatabaseConfig struct {
	Dialect string `json:"dialect,omitempty"`
	DSN     string `json:"dsn,omitempty"`
}

type AuthConfig struct {
	// JWTKey is the base64 encoded HS256 key bearer tokens are signed with.
	JWTKey string `json:"jwt_key,omitempty"`
}

type WebhookConfig struct {
	URL     string   `json:"url,omitempty"`
	Timeout Duration `json:"timeout,omitempty"`
}

type CIConfig struct {
	RunBaseURL string   `json:"run_base_url,omitempty"`
	Token      string   `json:"token,omitempty"`
	Schedule   string   `json:"schedule,omitempty"`
	Expiry     Duration `json:"expiry,omitempty"`
	Timeout    Duration `json:"timeout,omitempty"`
}

type FeedConfig struct {
	Suffixes []string     `json:"suffixes,omitempty"`
	MaxSize  SizeArgument `json:"max_size,omitempty"`
	Timeout  Duration     `json:"timeout,omitempty"`
}

type StoreConfig struct {
	Timeout Duration `json:"timeout,omitempty"`
}

type PublishConfig struct {
	Endpoint  string   `json:"endpoint,omitempty"`
	AccessKey string   `json:"access_key,omitempty"`
	SecretKey string   `json:"secret_key,omitempty"`
	Bucket    string   `json:"bucket,omitempty"`
	UseSSL    bool     `json:"use_ssl,omitempty"`
	Schedule  string   `json:"schedule,omitempty"`
	Repos     []string `json:"repos,omitempty"`
}

func (p PublishConfig) Enabled() bool {
	return p.Endpoint != "" && p.Bucket != ""
}

// Default returns the configuration used for every key a file or the
// environment leaves unset.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		Database: DatabaseConfig{
			Dialect: DialectSQLite,
			DSN:     "pkgledger.db",
		},
		Webhook: WebhookConfig{
			Timeout: Duration{10 * time.Second},
		},
		CI: CIConfig{
			Schedule: "@every 30s",
			Expiry:   Duration{24 * time.Hour},
			Timeout:  Duration{10 * time.Second},
		},
		Feed: FeedConfig{
			Suffixes: []string{"primary.xml.gz"},
			MaxSize:  SizeArgument{Size: 512 << 20},
			Timeout:  Duration{60 * time.Second},
		},
		Store: StoreConfig{
			Timeout: Duration{30 * time.Second},
		},
		Publish: PublishConfig{
			UseSSL: true,
		},
	}
}

// Validate checks what the schema cannot express.
func (c *Config) Validate() error {
	switch c.Database.Dialect {
	case DialectSQLite, DialectSQLite3, DialectPostgres:
	default:
		return fmt.Errorf("unknown database dialect %q", c.Database.Dialect)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Publish.Endpoint != "" && c.Publish.Bucket == "" {
		return fmt.Errorf("publish bucket is required when an endpoint is set")
	}
	return nil
}

// ApplyEnv overlays environment variables, after loading envFile when it
// exists. An empty envFile means ".env".
func (c *Config) ApplyEnv(envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	for key, dst := range map[string]*string{
		"LISTEN_ADDR":      &c.Listen,
		"DATABASE_DIALECT": &c.Database.Dialect,
		"DATABASE_URL":     &c.Database.DSN,
		"JWT_KEY":          &c.Auth.JWTKey,
		"WEBHOOK_URL":      &c.Webhook.URL,
		"GITHUB_TOKEN":     &c.CI.Token,
		"CI_RUN_BASE_URL":  &c.CI.RunBaseURL,
		"STORAGE_ENDPOINT": &c.Publish.Endpoint,
		"STORAGE_KEY":      &c.Publish.AccessKey,
		"STORAGE_SECRET":   &c.Publish.SecretKey,
		"STORAGE_BUCKET":   &c.Publish.Bucket,
	} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	return c.Validate()
}

func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("listen", c.Listen).
		Str("dialect", c.Database.Dialect).
		Bool("auth", c.Auth.JWTKey != "").
		Bool("webhook", c.Webhook.URL != "").
		Str("ci_schedule", c.CI.Schedule).
		Dur("ci_expiry", c.CI.Expiry.Duration).
		Strs("feed_suffixes", c.Feed.Suffixes).
		Int64("feed_max_size", c.Feed.MaxSize.Size)
	if c.Publish.Enabled() {
		e.Str("publish_endpoint", c.Publish.Endpoint).
			Str("publish_bucket", c.Publish.Bucket).
			Str("publish_schedule", c.Publish.Schedule)
	}
}
