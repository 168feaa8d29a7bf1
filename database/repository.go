package database

import (
	"context"
	"strings"

	"github.com/stupid-simple/pkgledger/errkind"
	"gorm.io/gorm"
)

// PutRepository registers a repository or replaces its links.
func (d *Database) PutRepository(ctx context.Context, repo Repository) (UpsertOutcome, error) {
	const op = "put repository"

	repo.Link = strings.TrimRight(repo.Link, "/")
	repo.Gh = strings.TrimRight(repo.Gh, "/")
	if repo.Name == "" || repo.Link == "" || repo.Gh == "" {
		return 0, errkind.New(errkind.Validation, op, "name, link and gh are required")
	}

	logger := d.Logger.With().Str("repo", repo.Name).Logger()
	if d.DryRun {
		logger.Info().Msg("would put repository (dry run)")
		return Inserted, nil
	}

	err := d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&repo).Error
	})
	if err == nil {
		logger.Info().Str("link", repo.Link).Msg("repository created")
		return Inserted, nil
	}
	if !isUniqueViolation(err) {
		return 0, classify(op, err)
	}

	err = d.Cli.WithContext(ctx).
		Model(&Repository{}).
		Where("name = ?", repo.Name).
		Updates(map[string]any{"link": repo.Link, "gh": repo.Gh}).Error
	if err != nil {
		return 0, classify(op, err)
	}
	logger.Info().Str("link", repo.Link).Msg("repository updated")
	return Updated, nil
}

func (d *Database) GetRepository(ctx context.Context, name string) (*Repository, error) {
	repo := &Repository{}
	err := d.Cli.WithContext(ctx).Where("name = ?", name).Take(repo).Error
	if err != nil {
		return nil, classify("get repository", err)
	}
	return repo, nil
}

func (d *Database) ListRepositories(ctx context.Context) ([]Repository, error) {
	repos := []Repository{}
	if err := d.Cli.WithContext(ctx).Order("name").Find(&repos).Error; err != nil {
		return nil, classify("list repositories", err)
	}
	return repos, nil
}

// DeleteRepository removes a repository with its packages, builds and pending
// runs. Dependent rows are deleted explicitly so the cascade also holds on
// SQLite connections without foreign key enforcement.
func (d *Database) DeleteRepository(ctx context.Context, name string) error {
	const op = "delete repository"

	logger := d.Logger.With().Str("repo", name).Logger()
	if d.DryRun {
		logger.Info().Msg("would delete repository (dry run)")
		return nil
	}

	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&PendingRun{}, &Build{}, &Package{}} {
			res := tx.Where("repo = ?", name).Delete(model)
			if res.Error != nil {
				return classify(op, res.Error)
			}
			logger.Debug().Int64("rows", res.RowsAffected).Str("table", tableName(model)).Msg("deleted dependent rows")
		}

		res := tx.Where("name = ?", name).Delete(&Repository{})
		if res.Error != nil {
			return classify(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return errkind.New(errkind.NotFound, op, "repository %q not found", name)
		}
		logger.Info().Msg("repository deleted")
		return nil
	})
}

func tableName(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return ""
}

