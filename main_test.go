package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/pkgledger/config"
	"github.com/stupid-simple/pkgledger/database"
)

func TestOpenDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	db, err := openDatabase(config.DatabaseConfig{Dialect: config.DialectSQLite, DSN: dsn}, zerolog.Nop(), false)
	require.NoError(t, err)
	defer closeDatabase(db)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	_, err = db.PutRepository(ctx, database.Repository{
		Name: "terra",
		Link: "https://repos.example.org/terra/",
		Gh:   "example/terra",
	})
	require.NoError(t, err)

	repo, err := db.GetRepository(ctx, "terra")
	require.NoError(t, err)
	assert.Equal(t, "https://repos.example.org/terra", repo.Link)
}

func TestOpenDatabaseUnknownDialect(t *testing.T) {
	_, err := openDatabase(config.DatabaseConfig{Dialect: "mysql", DSN: "x"}, zerolog.Nop(), false)
	assert.ErrorContains(t, err, "unknown database dialect")
}

func TestOpenDatabaseUnwritableDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "ledger.db")
	_, err := openDatabase(config.DatabaseConfig{Dialect: config.DialectSQLite, DSN: dsn}, zerolog.Nop(), false)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"listen": ":9000", "database": {"dialect": "sqlite", "dsn": "from-file.db"}}`), 0o644))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("WEBHOOK_URL=https://hooks.example.org/abc\n"), 0o644))

	t.Setenv("DATABASE_DIALECT", "sqlite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("LISTEN_ADDR", "")
	t.Cleanup(func() { os.Unsetenv("WEBHOOK_URL") })

	cfg, err := loadConfig(Command{Config: cfgPath, EnvFile: envPath}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "https://hooks.example.org/abc", cfg.Webhook.URL)
}

func TestNewComponentsWithoutPublishing(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"

	c, err := newComponents(cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.publisher)
	assert.ErrorContains(t, c.publishAll(context.Background(), nil, zerolog.Nop()), "not configured")
}
