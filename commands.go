package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/server"
	"github.com/stupid-simple/pkgledger/tracker"
)

func migrateCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg.Database, logger, args.DryRun)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if args.DryRun {
		logger.Info().Msg("would migrate database (dry run)")
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("could not migrate database: %w", err)
	}
	logger.Info().Str("dialect", cfg.Database.Dialect).Msg("database migrated")
	return nil
}

func reconcileCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}
	c, err := newComponents(cfg, logger, args.DryRun)
	if err != nil {
		return err
	}
	defer c.Close()

	repo := args.Reconcile.Repo
	entries, err := c.engine.Reconcile(ctx, repo)
	if err != nil {
		return err
	}

	if args.Reconcile.Publish {
		if c.publisher == nil {
			return errors.New("publishing is not configured")
		}
		uploaded, err := c.publisher.Publish(ctx, repo, entries)
		if err != nil {
			return err
		}
		logger.Info().Str("repo", repo).Bool("uploaded", uploaded).Int("entries", len(entries)).Msg("discovery document published")
		return nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if args.Reconcile.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(args.Reconcile.Output, data, 0o644); err != nil {
		return fmt.Errorf("could not write discovery document: %w", err)
	}
	logger.Info().Str("path", args.Reconcile.Output).Int("entries", len(entries)).Msg("discovery document written")
	return nil
}

func submitCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}
	c, err := newComponents(cfg, logger, args.DryRun)
	if err != nil {
		return err
	}
	defer c.Close()

	s := args.Submit
	report := tracker.Report{
		Repository: s.Repo,
		Name:       s.Name,
		Version:    s.Ver,
		Release:    s.Rel,
		Arch:       s.Arch,
		BuildID:    s.ID,
		Dirs:       s.Dirs,
		Commit:     s.Commit,
		Succeeded:  !s.Failed,
	}

	if s.Watch {
		return c.watcher.Watch(ctx, report)
	}

	res, err := c.tracker.SubmitBuild(ctx, report)
	if err != nil {
		return err
	}
	logger.Info().
		Str("outcome", res.Outcome.String()).
		Int("builds", len(res.Builds)).
		Msg("build report recorded")
	return nil
}

func keygenCommand() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	fmt.Println(base64.RawStdEncoding.EncodeToString(key))
	return nil
}

func signCommand(args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTKey == "" {
		return errors.New("no jwt key configured")
	}
	key, err := server.DecodeKey(cfg.Auth.JWTKey)
	if err != nil {
		return err
	}

	s := args.Token.Sign
	token, err := server.SignToken(key, s.Subject, s.Scope, s.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
