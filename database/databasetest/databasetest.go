// Package databasetest provides in-memory databases for tests.
package databasetest

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/pkgledger/database"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// New returns a migrated in-memory SQLite database. The pool holds a single
// connection, every connection to :memory: would otherwise see its own database.
func New(t testing.TB) *database.Database {
	t.Helper()

	cli, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	sqlDB, err := cli.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	db := &database.Database{
		Cli:    cli,
		Logger: zerolog.Nop(),
	}
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// Repository registers a repository named name with GitHub style links.
func Repository(t testing.TB, db *database.Database, name, link string) *database.Repository {
	t.Helper()

	repo := database.Repository{
		Name: name,
		Link: link,
		Gh:   "https://github.com/terrapkg/packages/tree/" + name,
	}
	_, err := db.PutRepository(context.Background(), repo)
	require.NoError(t, err)

	stored, err := db.GetRepository(context.Background(), name)
	require.NoError(t, err)
	return stored
}

// Undeadlined counts the statements db runs from now on whose context has no
// deadline.
func Undeadlined(t testing.TB, db *database.Database) *atomic.Int32 {
	t.Helper()

	var n atomic.Int32
	check := func(tx *gorm.DB) {
		if _, ok := tx.Statement.Context.Deadline(); !ok {
			n.Add(1)
		}
	}
	const name = "databasetest:deadline"
	cb := db.Cli.Callback()
	require.NoError(t, cb.Query().Before("gorm:query").Register(name, check))
	require.NoError(t, cb.Create().Before("gorm:create").Register(name, check))
	require.NoError(t, cb.Update().Before("gorm:update").Register(name, check))
	require.NoError(t, cb.Delete().Before("gorm:delete").Register(name, check))
	require.NoError(t, cb.Row().Before("gorm:row").Register(name, check))
	return &n
}
