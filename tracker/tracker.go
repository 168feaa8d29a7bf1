// Package tracker applies CI build reports to the package catalog and the
// build ledger.
//
// A successful build upserts the catalog row and appends one ledger entry in
// a single transaction. A failed build never touches the catalog: one failed
// entry is appended for every package sharing the reported directory and the
// failure is announced once the entries are stored.
package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/errkind"
	"github.com/stupid-simple/pkgledger/notify"
)

const DefaultTimeout = 30 * time.Second

// Notifier announces failed builds. Implementations must not fail the caller.
type Notifier interface {
	NotifyFailure(ctx context.Context, f notify.Failure)
}

type Outcome int

const (
	// Created means a successful build updated the catalog.
	Created Outcome = iota + 1
	// Recorded means a failed build was stored in the ledger only.
	Recorded
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Recorded:
		return "recorded"
	default:
		return "none"
	}
}

type Result struct {
	Outcome Outcome
	// Builds holds every ledger row written for the report.
	Builds []database.Build
	// Package is set for successful builds.
	Package *database.Package
	Upsert  database.UpsertOutcome
}

type Tracker struct {
	db       *database.Database
	notifier Notifier
	logger   zerolog.Logger
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Tracker)

// Bound each store round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Tracker) {
		t.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func New(db *database.Database, notifier Notifier, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		db:       db,
		notifier: notifier,
		logger:   logger,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SubmitBuild applies a build report.
func (t *Tracker) SubmitBuild(ctx context.Context, report Report) (*Result, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}
	logger := t.logger.With().EmbedObject(report).Logger()

	storeCtx, cancel := t.storeContext(ctx)
	defer cancel()

	repo, err := t.db.GetRepository(storeCtx, report.Repository)
	if err != nil {
		return nil, err
	}

	if report.Succeeded {
		return t.applySuccess(storeCtx, logger, report)
	}

	res, err := t.applyFailure(storeCtx, logger, report)
	if err != nil {
		return nil, err
	}

	// Notify only after the ledger holds the failure, and on the caller's
	// context so the store deadline does not cut delivery short.
	t.notifier.NotifyFailure(ctx, notify.Failure{
		Repository: report.Repository,
		Source:     repo.Gh,
		Directory:  report.Dirs,
		Arch:       report.Arch,
		BuildID:    report.BuildID,
	})
	return res, nil
}

func (t *Tracker) applySuccess(ctx context.Context, logger zerolog.Logger, report Report) (*Result, error) {
	key := database.PackageKey{Name: report.Name, Repo: report.Repository, Arch: report.Arch}
	build := t.newBuild(report, report.Name, true)
	res := &Result{Outcome: Created}

	err := t.db.Transaction(ctx, func(tx *database.Database) error {
		upsert, err := tx.UpsertPackage(ctx, key, report.Version, report.Release, report.Dirs)
		if err != nil {
			return err
		}
		res.Upsert = upsert
		return tx.AppendBuild(ctx, &build)
	})
	if err != nil {
		if errkind.Is(err, errkind.Conflict) {
			logger.Warn().Msg("build id already recorded, package change rolled back")
		}
		return nil, storeError("submit build", err)
	}

	res.Builds = []database.Build{build}
	res.Package = &database.Package{
		Name:    report.Name,
		Repo:    report.Repository,
		Arch:    report.Arch,
		Version: report.Version,
		Release: report.Release,
		Dirs:    report.Dirs,
	}
	logger.Info().Stringer("upsert", res.Upsert).Msg("successful build applied")
	return res, nil
}

func (t *Tracker) applyFailure(ctx context.Context, logger zerolog.Logger, report Report) (*Result, error) {
	names, err := t.db.PackageNamesInDir(ctx, report.Repository, report.Dirs)
	if err != nil {
		return nil, err
	}
	names = withName(names, report.Name)

	res := &Result{Outcome: Recorded}
	var firstErr error
	for _, name := range names {
		build := t.newBuild(report, name, false)
		if err := t.db.AppendBuild(ctx, &build); err != nil {
			logger.Error().Err(err).Str("package", name).Msg("failed to record failed build")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Builds = append(res.Builds, build)
	}
	if len(res.Builds) == 0 {
		return nil, storeError("submit build", firstErr)
	}

	logger.Info().Int("packages", len(res.Builds)).Msg("failed build recorded")
	return res, nil
}

func (t *Tracker) newBuild(report Report, name string, succ bool) database.Build {
	b := database.Build{
		BuildID: report.BuildID,
		Epoch:   t.now().UTC(),
		PName:   name,
		PVer:    report.Version,
		PRel:    report.Release,
		PArch:   report.Arch,
		Repo:    report.Repository,
		Succ:    succ,
	}
	if report.Commit != "" {
		commit := report.Commit
		b.Commit = &commit
	}
	return b
}

func (t *Tracker) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// withName appends name unless already present.
func withName(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func storeError(op string, err error) error {
	if errkind.KindOf(err) != errkind.Unknown {
		return err
	}
	return errkind.Wrap(errkind.StoreUnavailable, op, err)
}
