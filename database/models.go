package database

import (
	"time"
)

type Repository struct {
	Name string `gorm:"primaryKey" json:"name"`
	Link string `gorm:"not null" json:"link"`
	Gh   string `gorm:"not null" json:"gh"`
}

func (Repository) TableName() string { return "repos" }

type Package struct {
	Name       string     `gorm:"primaryKey" json:"name"`
	Repo       string     `gorm:"primaryKey" json:"repo"`
	Arch       string     `gorm:"primaryKey" json:"arch"`
	Version    string     `gorm:"not null" json:"ver"`
	Release    string     `gorm:"not null" json:"rel"`
	Dirs       string     `gorm:"index" json:"dirs"`
	Repository Repository `gorm:"foreignKey:Repo;references:Name;constraint:OnDelete:CASCADE" json:"-"`
}

func (Package) TableName() string { return "pkgs" }

func (p Package) Key() PackageKey {
	return PackageKey{Name: p.Name, Repo: p.Repo, Arch: p.Arch}
}

type Build struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	BuildID    string     `gorm:"column:build_id;not null;uniqueIndex:idx_builds_run" json:"id"`
	Epoch      time.Time  `gorm:"not null;index" json:"epoch"`
	PName      string     `gorm:"column:pname;not null;uniqueIndex:idx_builds_run" json:"pname"`
	PVer       string     `gorm:"column:pver;not null" json:"pver"`
	PRel       string     `gorm:"column:prel;not null" json:"prel"`
	PArch      string     `gorm:"column:parch;not null;uniqueIndex:idx_builds_run" json:"parch"`
	Repo       string     `gorm:"not null;index" json:"repo"`
	Succ       bool       `gorm:"not null" json:"succ"`
	Commit     *string    `json:"commit"`
	Repository Repository `gorm:"foreignKey:Repo;references:Name;constraint:OnDelete:CASCADE" json:"-"`
}

func (Build) TableName() string { return "builds" }

func (b Build) Key() BuildKey {
	return BuildKey{Name: b.PName, Version: b.PVer, Release: b.PRel, Arch: b.PArch}
}

// PendingRun is the persisted checkpoint of a CI run that has been reported
// as started but has not finished yet.
type PendingRun struct {
	RunID      string `gorm:"primaryKey"`
	Name       string `gorm:"primaryKey"`
	Arch       string `gorm:"primaryKey"`
	Repo       string `gorm:"not null;index"`
	Version    string
	Release    string
	Dirs       string
	Commit     string
	LastStatus string
	CheckedAt  *time.Time
	CreatedAt  time.Time
	Repository Repository `gorm:"foreignKey:Repo;references:Name;constraint:OnDelete:CASCADE"`
}

func (PendingRun) TableName() string { return "pending_runs" }

// PackageKey identifies a catalog row.
type PackageKey struct {
	Name string
	Repo string
	Arch string
}

// BuildKey is the (name, version, release, arch) tuple a build was made for.
type BuildKey struct {
	Name    string
	Version string
	Release string
	Arch    string
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{&Repository{}, &Package{}, &Build{}, &PendingRun{}}
}
