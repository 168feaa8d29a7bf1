// Package reconcile joins the package catalog with the upstream repository
// index into the discovery view published for package trackers.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/feed"
	"github.com/stupid-simple/pkgledger/links"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 2 * time.Minute

// Fetcher returns the upstream index of the repository published at link.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (feed.Index, error)
}

// DiscoveryEntry describes one package for third party trackers.
type DiscoveryEntry struct {
	Name     string  `json:"name"`
	Version  string  `json:"version"`
	Release  string  `json:"release"`
	Arch     string  `json:"arch"`
	URL      string  `json:"url"`
	Recipe   string  `json:"recipe"`
	Build    *string `json:"build"`
	License  string  `json:"license"`
	Summary  string  `json:"summary"`
	Category string  `json:"category"`
}

type Engine struct {
	db         *database.Database
	fetcher    Fetcher
	logger     zerolog.Logger
	runBaseURL string
	timeout    time.Duration
}

type Option func(*Engine)

// Base URL of CI run pages used for the build links.
func WithRunBaseURL(base string) Option {
	return func(e *Engine) {
		e.runBaseURL = base
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

func New(db *database.Database, fetcher Fetcher, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		fetcher: fetcher,
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile builds the discovery view of repo. The upstream index and the
// local catalog are read concurrently; if either fails nothing is returned.
// Packages the upstream index does not carry yet are left out.
func (e *Engine) Reconcile(ctx context.Context, repoName string) ([]DiscoveryEntry, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	logger := e.logger.With().Str("repo", repoName).Logger()
	startTime := time.Now()

	repo, err := e.db.GetRepository(ctx, repoName)
	if err != nil {
		return nil, err
	}

	var (
		index  feed.Index
		pkgs   []database.Package
		builds map[database.BuildKey]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		index, err = e.fetcher.Fetch(gctx, repo.Link)
		return err
	})
	g.Go(func() error {
		var err error
		if pkgs, err = e.db.AllPackages(gctx, repo.Name); err != nil {
			return err
		}
		builds, err = e.db.LatestSuccessfulBuilds(gctx, repo.Name)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("reconcile failed")
		return nil, err
	}

	entries := make([]DiscoveryEntry, 0, len(pkgs))
	for _, p := range pkgs {
		meta, ok := index.Lookup(p.Name, p.Version, p.Release, p.Arch)
		if !ok {
			logger.Debug().
				Str("name", p.Name).
				Str("arch", p.Arch).
				Str("evr", p.Version+"-"+p.Release).
				Msg("package not published upstream yet, skipping")
			continue
		}
		entries = append(entries, e.entry(repo, p, meta, builds))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Arch < entries[j].Arch
	})

	logger.Info().
		Int("local", len(pkgs)).
		Int("upstream", len(index)).
		Int("entries", len(entries)).
		Float64("seconds", time.Since(startTime).Seconds()).
		Msg("reconciled")
	return entries, nil
}

func (e *Engine) entry(repo *database.Repository, p database.Package, meta feed.Meta, builds map[database.BuildKey]string) DiscoveryEntry {
	entry := DiscoveryEntry{
		Name:     p.Name,
		Version:  p.Version,
		Release:  p.Release,
		Arch:     p.Arch,
		URL:      links.SourceURL(repo.Gh, p.Dirs),
		Recipe:   links.RecipeURL(repo.Gh, p.Dirs),
		License:  meta.License,
		Summary:  meta.Summary,
		Category: p.Dirs,
	}
	id, ok := builds[database.BuildKey{Name: p.Name, Version: p.Version, Release: p.Release, Arch: p.Arch}]
	if ok {
		url := links.BuildURL(e.runBaseURL, repo.Gh, id)
		entry.Build = &url
	}
	return entry
}
