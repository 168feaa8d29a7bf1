package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/ci"
	"github.com/stupid-simple/pkgledger/config"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/feed"
	"github.com/stupid-simple/pkgledger/notify"
	"github.com/stupid-simple/pkgledger/publish"
	"github.com/stupid-simple/pkgledger/recipe"
	"github.com/stupid-simple/pkgledger/reconcile"
	"github.com/stupid-simple/pkgledger/tracker"
)

// components are built once per process and shared by every command.
type components struct {
	cfg       *config.Config
	db        *database.Database
	tracker   *tracker.Tracker
	engine    *reconcile.Engine
	watcher   *ci.Watcher
	recipes   *recipe.Loader
	publisher *publish.Publisher
}

func loadConfig(args Command, logger zerolog.Logger) (*config.Config, error) {
	cfg := config.Default()
	if args.Config != "" {
		var err error
		cfg, err = config.LoadFromFile(args.Config)
		if err != nil {
			return nil, fmt.Errorf("could not load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(args.EnvFile); err != nil {
		return nil, fmt.Errorf("could not apply environment: %w", err)
	}
	logger.Debug().Object("config", cfg).Msg("configuration loaded")
	return cfg, nil
}

func newComponents(cfg *config.Config, logger zerolog.Logger, dryRun bool) (*components, error) {
	db, err := openDatabase(cfg.Database, logger, dryRun)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	httpClient := resty.New().SetHeader("User-Agent", "pkgledger/"+version)

	notifier := notify.NewDispatcher(cfg.Webhook.URL, logger,
		notify.WithHTTPClient(httpClient),
		notify.WithRunBaseURL(cfg.CI.RunBaseURL),
		notify.WithTimeout(cfg.Webhook.Timeout.Duration),
	)
	tr := tracker.New(db, notifier, logger,
		tracker.WithTimeout(cfg.Store.Timeout.Duration),
	)
	fetcher := feed.NewFetcher(
		feed.WithHTTPClient(httpClient),
		feed.WithLogger(logger),
		feed.WithSuffixes(cfg.Feed.Suffixes...),
		feed.WithMaxSize(cfg.Feed.MaxSize.Size),
		feed.WithTimeout(cfg.Feed.Timeout.Duration),
	)
	engine := reconcile.New(db, fetcher, logger,
		reconcile.WithRunBaseURL(cfg.CI.RunBaseURL),
	)
	ciClient := resty.New().
		SetHeader("User-Agent", "pkgledger/"+version).
		SetTimeout(cfg.CI.Timeout.Duration)
	watcher := ci.NewWatcher(db, ci.NewClient(ciClient, cfg.CI.Token), tr, logger,
		ci.WithExpiry(cfg.CI.Expiry.Duration),
		ci.WithStoreTimeout(cfg.Store.Timeout.Duration),
	)

	c := &components{
		cfg:     cfg,
		db:      db,
		tracker: tr,
		engine:  engine,
		watcher: watcher,
		recipes: recipe.NewLoader(httpClient, recipe.WithLogger(logger)),
	}

	if cfg.Publish.Enabled() {
		store, err := publish.NewStore(publish.StoreParams{
			Endpoint:  cfg.Publish.Endpoint,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			UseSSL:    cfg.Publish.UseSSL,
		})
		if err != nil {
			return nil, errors.Join(err, closeDatabase(db))
		}
		c.publisher = publish.NewPublisher(store, cfg.Publish.Bucket, logger)
	}
	return c, nil
}

func (c *components) Close() error {
	c.watcher.Close()
	return closeDatabase(c.db)
}

// publishAll reconciles and publishes every configured repository, or every
// known repository when none is configured. A failing repository does not
// stop the others.
func (c *components) publishAll(ctx context.Context, repos []string, logger zerolog.Logger) error {
	if c.publisher == nil {
		return errors.New("publishing is not configured")
	}
	if len(repos) == 0 {
		known, err := c.db.ListRepositories(ctx)
		if err != nil {
			return err
		}
		for _, r := range known {
			repos = append(repos, r.Name)
		}
	}

	var errs []error
	for _, repo := range repos {
		entries, err := c.engine.Reconcile(ctx, repo)
		if err == nil {
			_, err = c.publisher.Publish(ctx, repo, entries)
		}
		if err != nil {
			logger.Error().Err(err).Str("repo", repo).Msg("could not publish discovery document")
			errs = append(errs, fmt.Errorf("%s: %w", repo, err))
		}
	}
	return errors.Join(errs...)
}
