package database

import (
	"context"

	"gorm.io/gorm/clause"
)

// AppendBuild records one build attempt. Submitting the same build id twice
// for a package and architecture is a conflict.
func (d *Database) AppendBuild(ctx context.Context, build *Build) error {
	logger := d.Logger.With().
		Str("repo", build.Repo).
		Str("name", build.PName).
		Str("arch", build.PArch).
		Str("build", build.BuildID).
		Bool("succ", build.Succ).
		Logger()

	if d.DryRun {
		logger.Info().Msg("would append build (dry run)")
		return nil
	}

	if err := d.Cli.WithContext(ctx).Omit(clause.Associations).Create(build).Error; err != nil {
		return classify("append build", err)
	}
	logger.Debug().Msg("build appended")
	return nil
}

// LatestSuccessfulBuilds maps every (name, version, release, arch) of the
// repository to the id of its most recent successful build. Only one row per
// key leaves the database.
func (d *Database) LatestSuccessfulBuilds(ctx context.Context, repo string) (map[BuildKey]string, error) {
	newest := d.Cli.
		Table("builds AS newer").
		Select("newer.id").
		Where("newer.repo = b.repo AND newer.succ = ?", true).
		Where("newer.pname = b.pname AND newer.pver = b.pver AND newer.prel = b.prel AND newer.parch = b.parch").
		Order("newer.epoch DESC").
		Order("newer.id DESC").
		Limit(1)

	builds := []Build{}
	err := d.Cli.WithContext(ctx).
		Table("builds AS b").
		Select("b.build_id, b.pname, b.pver, b.prel, b.parch").
		Where("b.repo = ? AND b.succ = ?", repo, true).
		Where("b.id = (?)", newest).
		Find(&builds).Error
	if err != nil {
		return nil, classify("latest successful builds", err)
	}

	latest := make(map[BuildKey]string, len(builds))
	for _, b := range builds {
		latest[b.Key()] = b.BuildID
	}
	return latest, nil
}

// ListBuilds returns the build history of a package, newest first.
func (d *Database) ListBuilds(ctx context.Context, repo, name string) ([]Build, error) {
	if _, err := d.GetRepository(ctx, repo); err != nil {
		return nil, err
	}

	builds := []Build{}
	err := d.Cli.WithContext(ctx).
		Where("repo = ? AND pname = ?", repo, name).
		Order("epoch DESC").
		Order("id DESC").
		Find(&builds).Error
	if err != nil {
		return nil, classify("list builds", err)
	}
	return builds, nil
}
