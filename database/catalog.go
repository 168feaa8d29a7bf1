package database

import (
	"context"
	"errors"
	"strings"

	"github.com/stupid-simple/pkgledger/errkind"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxListLimit is the largest page ListPackages serves.
const MaxListLimit = 100

type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "none"
	}
}

// UpsertPackage creates the catalog row for key or updates its version,
// release and directory in place. A caller that loses an insert race against
// another caller falls back to updating the row the winner created.
func (d *Database) UpsertPackage(ctx context.Context, key PackageKey, version, release, dirs string) (UpsertOutcome, error) {
	const op = "upsert package"

	dirs = strings.TrimRight(dirs, "/")
	logger := d.Logger.With().
		Str("repo", key.Repo).
		Str("name", key.Name).
		Str("arch", key.Arch).
		Str("version", version).
		Str("release", release).
		Logger()

	existing := Package{}
	err := d.Cli.WithContext(ctx).
		Where("name = ? AND repo = ? AND arch = ?", key.Name, key.Repo, key.Arch).
		Take(&existing).Error
	switch {
	case err == nil:
		logger.Debug().Str("previous", existing.Version+"-"+existing.Release).Msg("updating package")
		return Updated, d.updatePackage(ctx, key, version, release, dirs)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, classify(op, err)
	}

	if d.DryRun {
		logger.Info().Msg("would insert package (dry run)")
		return Inserted, nil
	}

	row := Package{
		Name:    key.Name,
		Repo:    key.Repo,
		Arch:    key.Arch,
		Version: version,
		Release: release,
		Dirs:    dirs,
	}
	// The savepoint keeps an enclosing Postgres transaction usable after a
	// unique violation.
	err = d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if isUniqueViolation(err) {
		logger.Debug().Msg("package inserted concurrently, updating instead")
		return Updated, d.updatePackage(ctx, key, version, release, dirs)
	}
	if err != nil {
		return 0, classify(op, err)
	}

	logger.Debug().Msg("package inserted")
	return Inserted, nil
}

func (d *Database) updatePackage(ctx context.Context, key PackageKey, version, release, dirs string) error {
	if d.DryRun {
		d.Logger.Info().Str("repo", key.Repo).Str("name", key.Name).Msg("would update package (dry run)")
		return nil
	}
	err := d.Cli.WithContext(ctx).
		Model(&Package{}).
		Where("name = ? AND repo = ? AND arch = ?", key.Name, key.Repo, key.Arch).
		Updates(map[string]any{
			"version": version,
			"release": release,
			"dirs":    dirs,
		}).Error
	return classify("update package", err)
}

// ListPackages returns one page of the repository catalog.
func (d *Database) ListPackages(ctx context.Context, repo string, opts ...ListOption) ([]Package, error) {
	const op = "list packages"

	o := listOptions{sort: DefaultSort}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit > MaxListLimit {
		return nil, errkind.New(errkind.LimitExceeded, op, "limit %d is above %d", o.limit, MaxListLimit)
	}
	if o.limit < 0 || o.offset < 0 {
		return nil, errkind.New(errkind.Validation, op, "limit and offset must not be negative")
	}
	if o.limit == 0 {
		o.limit = MaxListLimit
	}

	if _, err := d.GetRepository(ctx, repo); err != nil {
		return nil, err
	}

	pkgs := []Package{}
	err := d.Cli.WithContext(ctx).
		Where("repo = ?", repo).
		Order(o.sort.orderBy()).
		Order("name").
		Order("arch").
		Limit(o.limit).
		Offset(o.offset).
		Find(&pkgs).Error
	if err != nil {
		return nil, classify(op, err)
	}
	return pkgs, nil
}

// GetPackage returns the catalog row for name. When the package is built for
// several architectures the row with the highest version wins, ties go to
// the first architecture in lexical order.
func (d *Database) GetPackage(ctx context.Context, repo, name string) (*Package, error) {
	pkg := &Package{}
	err := d.Cli.WithContext(ctx).
		Where("repo = ? AND name = ?", repo, name).
		Order("version DESC").
		Order("arch").
		Take(pkg).Error
	if err != nil {
		return nil, classify("get package", err)
	}
	return pkg, nil
}

// AllPackages returns the whole catalog of a repository ordered by name and arch.
func (d *Database) AllPackages(ctx context.Context, repo string) ([]Package, error) {
	pkgs := []Package{}
	err := d.Cli.WithContext(ctx).
		Where("repo = ?", repo).
		Order("name").
		Order("arch").
		Find(&pkgs).Error
	if err != nil {
		return nil, classify("all packages", err)
	}
	return pkgs, nil
}

// PackageNamesInDir lists the packages built from the same source directory.
func (d *Database) PackageNamesInDir(ctx context.Context, repo, dirs string) ([]string, error) {
	dirs = strings.TrimRight(dirs, "/")
	if dirs == "" {
		return nil, nil
	}
	names := []string{}
	err := d.Cli.WithContext(ctx).
		Model(&Package{}).
		Where("repo = ? AND dirs = ?", repo, dirs).
		Distinct().
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, classify("packages in dir", err)
	}
	return names, nil
}

// DeletePackage removes the catalog row matching key at exactly version-release.
func (d *Database) DeletePackage(ctx context.Context, key PackageKey, version, release string) error {
	const op = "delete package"

	if d.DryRun {
		d.Logger.Info().Str("repo", key.Repo).Str("name", key.Name).Msg("would delete package (dry run)")
		return nil
	}

	res := d.Cli.WithContext(ctx).
		Where("name = ? AND repo = ? AND arch = ? AND version = ? AND release = ?",
			key.Name, key.Repo, key.Arch, version, release).
		Delete(&Package{})
	if res.Error != nil {
		return classify(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errkind.New(errkind.NotFound, op, "package %s %s-%s.%s not found", key.Name, version, release, key.Arch)
	}
	return nil
}
