package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/config"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/fileutils"
	"gorm.io/driver/postgres"
	sqlite3 "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func openDatabase(cfg config.DatabaseConfig, logger zerolog.Logger, dryRun bool) (*database.Database, error) {
	var dialector gorm.Dialector
	switch cfg.Dialect {
	case config.DialectSQLite, "":
		if err := verifySQLitePath(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	case config.DialectSQLite3:
		if err := verifySQLitePath(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite3.Open(cfg.DSN)
	case config.DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database dialect %q", cfg.Dialect)
	}

	cli, err := gorm.Open(dialector, &gorm.Config{
		Logger:         dbLogger(logger),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Dialect != config.DialectPostgres {
		// SQLite serializes writers anyway, one connection avoids SQLITE_BUSY.
		sqlDB, err := cli.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &database.Database{
		Cli:    cli,
		Logger: logger,
		DryRun: dryRun,
	}, nil
}

func closeDatabase(db *database.Database) error {
	sqlDB, err := db.Cli.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func verifySQLitePath(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := fileutils.VerifyWritable(dir); err != nil {
		return fmt.Errorf("database directory %s is not writable: %w", dir, err)
	}
	return nil
}

type dblog struct {
	parent zerolog.Logger
}

// Error implements logger.Interface.
func (d *dblog) Error(_ context.Context, msg string, args ...interface{}) {
	d.parent.Error().Msgf(msg, args...)
}

// Info implements logger.Interface.
func (d *dblog) Info(_ context.Context, msg string, args ...interface{}) {
	d.parent.Info().Msgf(msg, args...)
}

// LogMode implements logger.Interface.
func (d *dblog) LogMode(lvl logger.LogLevel) logger.Interface {
	var zl zerolog.Level
	switch lvl {
	case logger.Info:
		zl = zerolog.InfoLevel
	case logger.Error:
		zl = zerolog.ErrorLevel
	case logger.Warn:
		zl = zerolog.WarnLevel
	default:
		zl = zerolog.Disabled
	}
	return &dblog{parent: d.parent.Level(zl)}
}

// Trace implements logger.Interface. Missing rows are expected and not
// reported as errors.
func (d *dblog) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	e := d.parent.Trace()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		e = d.parent.Debug().Err(err)
	}
	e.Dur("elapsed", time.Since(begin)).Func(func(e *zerolog.Event) {
		sql, rows := fc()
		e.Str("sql", sql)
		e.Int64("rows_affected", rows)
	}).Msg("query")
}

// Warn implements logger.Interface.
func (d *dblog) Warn(_ context.Context, msg string, args ...interface{}) {
	d.parent.Warn().Msgf(msg, args...)
}

func dbLogger(logger zerolog.Logger) logger.Interface {
	return &dblog{
		parent: logger.With().Str("component", "gorm").Logger(),
	}
}
