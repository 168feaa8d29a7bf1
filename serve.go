package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/config"
	"github.com/stupid-simple/pkgledger/fileutils"
	"github.com/stupid-simple/pkgledger/scheduler"
	"github.com/stupid-simple/pkgledger/server"
)

func serveCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}
	if args.Serve.Listen != "" {
		cfg.Listen = args.Serve.Listen
	}

	c, err := newComponents(cfg, logger, args.DryRun)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close database")
		}
	}()

	if err := c.db.Migrate(ctx); err != nil {
		return fmt.Errorf("could not migrate database: %w", err)
	}

	var key []byte
	if cfg.Auth.JWTKey == "" {
		logger.Warn().Msg("no jwt key configured, write routes are disabled")
	} else if key, err = server.DecodeKey(cfg.Auth.JWTKey); err != nil {
		return err
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})
	addJobsFromConfig(ctx, sched, cfg, c, logger)

	if args.Config != "" {
		startConfigFileWatcher(ctx, args.Config, logger, func(newCfg *config.Config) {
			if err := newCfg.ApplyEnv(args.EnvFile); err != nil {
				logger.Error().Err(err).Msg("could not apply environment")
				return
			}
			sched.RemoveJobs()
			addJobsFromConfig(ctx, sched, newCfg, c, logger)
		})
	}

	sched.Start()
	defer sched.Stop()

	app := server.New(server.Params{
		DB:           c.db,
		Tracker:      c.tracker,
		Reconciler:   c.engine,
		Watcher:      c.watcher,
		Recipes:      c.recipes,
		Key:          key,
		StoreTimeout: cfg.Store.Timeout.Duration,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("version", version).Msg("serving")
		errCh <- app.Listen(cfg.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	c.watcher.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// addJobsFromConfig schedules the CI run watcher and, when configured, the
// discovery publishing job. Only schedules are taken from cfg, components are
// kept across reloads.
func addJobsFromConfig(
	ctx context.Context,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	c *components,
	logger zerolog.Logger,
) {
	if cfg.CI.Schedule != "" {
		if err := sched.AddJob(ctx, "ci-watch", cfg.CI.Schedule, c.watcher); err != nil {
			logger.Error().Err(err).Msg("could not add CI watch job")
		}
	}

	if cfg.Publish.Schedule == "" {
		return
	}
	if c.publisher == nil {
		logger.Warn().Msg("publish schedule set without object storage, skipping")
		return
	}
	repos := cfg.Publish.Repos
	job := scheduler.JobFunc(func() {
		startTime := time.Now()
		err := c.publishAll(ctx, repos, logger)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("publish job failed")
			return
		}
		logger.Info().Float64("seconds", time.Since(startTime).Seconds()).Msg("publish job done")
	})
	if err := sched.AddJob(ctx, "publish", cfg.Publish.Schedule, job); err != nil {
		logger.Error().Err(err).Msg("could not add publish job")
	}
}

const configPollInterval = 30 * time.Second

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, configPollInterval, func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher:
				if !ok {
					return
				}
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading jobs")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}
