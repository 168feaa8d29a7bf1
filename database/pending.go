package database

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// SavePendingRun checkpoints a CI run that still has to be watched.
func (d *Database) SavePendingRun(ctx context.Context, run *PendingRun) error {
	if d.DryRun {
		d.Logger.Info().Str("run", run.RunID).Msg("would save pending run (dry run)")
		return nil
	}
	err := d.Cli.WithContext(ctx).Omit(clause.Associations).Create(run).Error
	return classify("save pending run", err)
}

// PendingRuns returns every checkpointed run, oldest first.
func (d *Database) PendingRuns(ctx context.Context) ([]PendingRun, error) {
	runs := []PendingRun{}
	if err := d.Cli.WithContext(ctx).Order("created_at").Find(&runs).Error; err != nil {
		return nil, classify("pending runs", err)
	}
	return runs, nil
}

// TouchPendingRun stores the last observed status of a run.
func (d *Database) TouchPendingRun(ctx context.Context, run *PendingRun, status string, at time.Time) error {
	run.LastStatus = status
	run.CheckedAt = &at
	if d.DryRun {
		return nil
	}
	err := d.Cli.WithContext(ctx).
		Model(&PendingRun{}).
		Where("run_id = ? AND name = ? AND arch = ?", run.RunID, run.Name, run.Arch).
		Updates(map[string]any{"last_status": status, "checked_at": at}).Error
	return classify("touch pending run", err)
}

func (d *Database) DeletePendingRun(ctx context.Context, run *PendingRun) error {
	if d.DryRun {
		return nil
	}
	err := d.Cli.WithContext(ctx).
		Where("run_id = ? AND name = ? AND arch = ?", run.RunID, run.Name, run.Arch).
		Delete(&PendingRun{}).Error
	return classify("delete pending run", err)
}
