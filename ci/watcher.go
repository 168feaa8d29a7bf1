package ci

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/errkind"
	"github.com/stupid-simple/pkgledger/tracker"
)

const (
	DefaultExpiry       = 24 * time.Hour
	DefaultStoreTimeout = 30 * time.Second
)

type StatusSource interface {
	RunStatus(ctx context.Context, gh, runID string) (*RunStatus, error)
}

type Submitter interface {
	SubmitBuild(ctx context.Context, report tracker.Report) (*tracker.Result, error)
}

// Watcher keeps a checkpoint for every CI run it was asked to follow and
// polls them on each Run. Checkpoints live in the database, so a restarted
// process picks up where the previous one stopped.
type Watcher struct {
	db        *database.Database
	runs      StatusSource
	submitter Submitter
	logger    zerolog.Logger
	expiry    time.Duration
	timeout   time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

type WatcherOption func(*Watcher)

// Abandon runs that have not completed after expiry.
func WithExpiry(expiry time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.expiry = expiry
	}
}

// Bound each store round trip.
func WithStoreTimeout(timeout time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.timeout = timeout
	}
}

func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		w.now = now
	}
}

func NewWatcher(db *database.Database, runs StatusSource, submitter Submitter, logger zerolog.Logger, opts ...WatcherOption) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		db:        db,
		runs:      runs,
		submitter: submitter,
		logger:    logger,
		expiry:    DefaultExpiry,
		timeout:   DefaultStoreTimeout,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch checkpoints the run named by report.BuildID. Its outcome is decided
// by the CI system, report.Succeeded is ignored.
func (w *Watcher) Watch(ctx context.Context, report tracker.Report) error {
	if err := report.Validate(); err != nil {
		return err
	}
	ctx, cancel := w.storeContext(ctx)
	defer cancel()

	if _, err := w.db.GetRepository(ctx, report.Repository); err != nil {
		return err
	}

	run := &database.PendingRun{
		RunID:     report.BuildID,
		Name:      report.Name,
		Arch:      report.Arch,
		Repo:      report.Repository,
		Version:   report.Version,
		Release:   report.Release,
		Dirs:      report.Dirs,
		Commit:    report.Commit,
		CreatedAt: w.now().UTC(),
	}
	if err := w.db.SavePendingRun(ctx, run); err != nil {
		return err
	}
	w.logger.Info().EmbedObject(report).Msg("watching CI run")
	return nil
}

// Run polls every pending run once. It is meant to be scheduled.
func (w *Watcher) Run() {
	if err := w.Tick(w.ctx); err != nil && w.ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("CI watch tick failed")
	}
}

// Close cancels a running tick. Later ticks return immediately.
func (w *Watcher) Close() {
	w.once.Do(w.cancel)
}

// Tick polls every pending run once.
func (w *Watcher) Tick(ctx context.Context) error {
	storeCtx, cancel := w.storeContext(ctx)
	runs, err := w.db.PendingRuns(storeCtx)
	cancel()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	w.logger.Debug().Int("runs", len(runs)).Msg("polling CI runs")

	repos := map[string]*database.Repository{}
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		run := &runs[i]
		logger := w.logger.With().
			Str("repo", run.Repo).
			Str("name", run.Name).
			Str("arch", run.Arch).
			Str("run", run.RunID).
			Logger()

		if w.now().Sub(run.CreatedAt) > w.expiry {
			logger.Warn().Time("created_at", run.CreatedAt).Msg("CI run did not complete in time, abandoning")
			if err := w.deleteRun(ctx, run); err != nil {
				logger.Error().Err(err).Msg("could not delete pending run")
			}
			continue
		}

		repo, ok := repos[run.Repo]
		if !ok {
			storeCtx, cancel := w.storeContext(ctx)
			repo, err = w.db.GetRepository(storeCtx, run.Repo)
			cancel()
			if err != nil {
				logger.Error().Err(err).Msg("could not resolve repository")
				continue
			}
			repos[run.Repo] = repo
		}

		if err := w.poll(ctx, logger, repo, run); err != nil {
			logger.Warn().Err(err).Msg("CI run poll failed")
		}
	}
	return nil
}

func (w *Watcher) poll(ctx context.Context, logger zerolog.Logger, repo *database.Repository, run *database.PendingRun) error {
	status, err := w.runs.RunStatus(ctx, repo.Gh, run.RunID)
	if err != nil {
		return err
	}

	if !status.Completed() {
		logger.Debug().Str("status", status.Status).Msg("CI run still in progress")
		storeCtx, cancel := w.storeContext(ctx)
		defer cancel()
		return w.db.TouchPendingRun(storeCtx, run, status.Status, w.now().UTC())
	}

	report := tracker.Report{
		Repository: run.Repo,
		Name:       run.Name,
		Version:    run.Version,
		Release:    run.Release,
		Arch:       run.Arch,
		BuildID:    run.RunID,
		Dirs:       run.Dirs,
		Commit:     run.Commit,
		Succeeded:  status.Succeeded(),
	}
	if report.Commit == "" {
		report.Commit = status.HeadSHA
	}

	_, err = w.submitter.SubmitBuild(ctx, report)
	switch {
	case errkind.Is(err, errkind.Conflict):
		logger.Info().Msg("CI run was already recorded")
	case err != nil:
		// Keep the checkpoint, the next tick retries.
		return err
	default:
		logger.Info().Str("conclusion", status.Conclusion).Msg("CI run completed")
	}
	return w.deleteRun(ctx, run)
}

func (w *Watcher) deleteRun(ctx context.Context, run *database.PendingRun) error {
	ctx, cancel := w.storeContext(ctx)
	defer cancel()
	return w.db.DeletePendingRun(ctx, run)
}

func (w *Watcher) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.timeout)
}
