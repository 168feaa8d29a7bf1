package database

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/errkind"
	"gorm.io/gorm"
)

type Database struct {
	Cli    *gorm.DB
	Logger zerolog.Logger
	DryRun bool
}

// Migrate creates or updates every table.
func (d *Database) Migrate(ctx context.Context) error {
	return d.Cli.WithContext(ctx).AutoMigrate(AllModels()...)
}

// Transaction runs fn on a single connection. Returning an error rolls back
// everything fn wrote through tx.
func (d *Database) Transaction(ctx context.Context, fn func(tx *Database) error) error {
	return d.Cli.WithContext(ctx).Transaction(func(cli *gorm.DB) error {
		return fn(&Database{Cli: cli, Logger: d.Logger, DryRun: d.DryRun})
	})
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errkind.KindOf(err) != errkind.Unknown:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errkind.Wrap(errkind.NotFound, op, err)
	case isUniqueViolation(err):
		return errkind.Wrap(errkind.Conflict, op, err)
	default:
		return errkind.Wrap(errkind.StoreUnavailable, op, err)
	}
}

// isUniqueViolation also matches untranslated driver errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
