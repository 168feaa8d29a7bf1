package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stupid-simple/pkgledger/config"
)

var goodConfig = `
{
	"listen": ":9000",
	"database": {
		"dialect": "postgres",
		"dsn": "postgres://pkgledger@localhost/pkgledger"
	},
	"ci": {
		"run_base_url": "https://github.com/terrapkg/packages/actions/runs",
		"schedule": "@every 1m",
		"expiry": "12h"
	},
	"feed": {
		"suffixes": ["primary.xml.zst", "primary.xml.gz"],
		"max_size": "64MB"
	}
}
`

var goodYAML = `
database:
  dialect: sqlite
  dsn: /var/lib/pkgledger/pkgledger.db
webhook:
  url: https://discord.com/api/webhooks/1/abc
  timeout: 5s
publish:
  endpoint: s3.example.com
  bucket: discovery
  schedule: "@hourly"
  repos: [terra]
`

var badConfig = `
[]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Good(t *testing.T) {
	cfg, err := config.LoadFromFile(writeFile(t, "test.json", goodConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9000" {
		t.Errorf("expected listen :9000, got %s", cfg.Listen)
	}
	if cfg.Database.Dialect != config.DialectPostgres {
		t.Errorf("expected postgres dialect, got %s", cfg.Database.Dialect)
	}
	if cfg.CI.Expiry.Duration != 12*time.Hour {
		t.Errorf("expected expiry 12h, got %s", cfg.CI.Expiry)
	}
	if cfg.CI.Timeout.Duration != 10*time.Second {
		t.Errorf("expected default ci timeout, got %s", cfg.CI.Timeout)
	}
	if cfg.Feed.MaxSize.Size != 64_000_000 {
		t.Errorf("expected max size 64MB, got %d", cfg.Feed.MaxSize.Size)
	}
	if len(cfg.Feed.Suffixes) != 2 || cfg.Feed.Suffixes[0] != "primary.xml.zst" {
		t.Errorf("unexpected suffixes %v", cfg.Feed.Suffixes)
	}
	if cfg.Publish.Enabled() {
		t.Error("publishing should be disabled")
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := config.LoadFromFile(writeFile(t, "test.yaml", goodYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.DSN != "/var/lib/pkgledger/pkgledger.db" {
		t.Errorf("unexpected dsn %s", cfg.Database.DSN)
	}
	if cfg.Webhook.Timeout.Duration != 5*time.Second {
		t.Errorf("expected webhook timeout 5s, got %s", cfg.Webhook.Timeout)
	}
	if !cfg.Publish.Enabled() || cfg.Publish.Bucket != "discovery" {
		t.Errorf("expected publishing to discovery, got %+v", cfg.Publish)
	}
	if !cfg.Publish.UseSSL {
		t.Error("expected ssl to default to true")
	}
	if len(cfg.Publish.Repos) != 1 || cfg.Publish.Repos[0] != "terra" {
		t.Errorf("unexpected repos %v", cfg.Publish.Repos)
	}
	if cfg.Listen != ":8000" {
		t.Errorf("expected default listen address, got %s", cfg.Listen)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	for name, content := range map[string]string{
		"array":            badConfig,
		"unknown key":      `{"sources": []}`,
		"bad dialect":      `{"database": {"dialect": "mysql"}}`,
		"bad duration":     `{"ci": {"expiry": "one day"}}`,
		"empty suffixes":   `{"feed": {"suffixes": []}}`,
		"bucket not given": `{"publish": {"endpoint": "s3.example.com"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadFromFile(writeFile(t, "test.json", content))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_BadSize(t *testing.T) {
	_, err := config.LoadFromFile(writeFile(t, "test.json", `{"feed": {"max_size": "lots"}}`))
	if err == nil {
		t.Error("expected error")
	}
}

func TestLoad_NoFile(t *testing.T) {
	_, err := config.LoadFromFile("unexisting")
	if err == nil {
		t.Error("expected error")
	}
}

func TestLoad_Unreadable(t *testing.T) {
	_, err := config.LoadFromFile(t.TempDir())
	if err == nil {
		t.Error("expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := writeFile(t, "test.env", "JWT_KEY=from-file\nWEBHOOK_URL=https://hooks.example.com/x\n")
	t.Setenv("DATABASE_URL", "/tmp/override.db")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg := config.Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("JWT_KEY")
		_ = os.Unsetenv("WEBHOOK_URL")
	})

	if cfg.Database.DSN != "/tmp/override.db" {
		t.Errorf("expected dsn from env, got %s", cfg.Database.DSN)
	}
	if cfg.CI.Token != "ghp_test" {
		t.Errorf("expected token from env, got %s", cfg.CI.Token)
	}
	if cfg.Auth.JWTKey != "from-file" {
		t.Errorf("expected key from env file, got %s", cfg.Auth.JWTKey)
	}
	if cfg.Webhook.URL != "https://hooks.example.com/x" {
		t.Errorf("expected webhook from env file, got %s", cfg.Webhook.URL)
	}
}

func TestApplyEnv_MissingFile(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
}
