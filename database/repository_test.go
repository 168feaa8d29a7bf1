package database_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/database/databasetest"
	"github.com/stupid-simple/pkgledger/errkind"
)

func TestDatabase_PutRepository(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()

	outcome, err := db.PutRepository(ctx, database.Repository{
		Name: "terra",
		Link: "https://repos.example.com/terra/",
		Gh:   "https://github.com/terrapkg/packages/tree/f41/",
	})
	require.NoError(t, err)
	assert.Equal(t, database.Inserted, outcome)

	repo, err := db.GetRepository(ctx, "terra")
	require.NoError(t, err)
	assert.Equal(t, "https://repos.example.com/terra", repo.Link)
	assert.Equal(t, "https://github.com/terrapkg/packages/tree/f41", repo.Gh)

	outcome, err = db.PutRepository(ctx, database.Repository{
		Name: "terra",
		Link: "https://mirror.example.com/terra",
		Gh:   "https://github.com/terrapkg/packages/tree/f42",
	})
	require.NoError(t, err)
	assert.Equal(t, database.Updated, outcome)

	repos, err := db.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "https://mirror.example.com/terra", repos[0].Link)

	_, err = db.PutRepository(ctx, database.Repository{Name: "empty"})
	assert.True(t, errkind.Is(err, errkind.Validation))
}

func TestDatabase_DeleteRepository(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")
	databasetest.Repository(t, db, "other", "https://repos.example.com/other")

	// Build and run ids come from one CI system, so they differ across repositories.
	for i, repo := range []string{"terra", "other"} {
		_, err := db.UpsertPackage(ctx, database.PackageKey{Name: "foo", Repo: repo, Arch: "x86_64"}, "1.0", "1", "pkgs/foo")
		require.NoError(t, err)
		require.NoError(t, db.AppendBuild(ctx, &database.Build{
			BuildID: strconv.Itoa(100 + i), Epoch: time.Now().UTC(), PName: "foo", PVer: "1.0", PRel: "1", PArch: "x86_64", Repo: repo, Succ: true,
		}))
		require.NoError(t, db.AppendBuild(ctx, &database.Build{
			BuildID: strconv.Itoa(200 + i), Epoch: time.Now().UTC(), PName: "foo", PVer: "1.1", PRel: "1", PArch: "x86_64", Repo: repo, Succ: false,
		}))
		require.NoError(t, db.SavePendingRun(ctx, &database.PendingRun{
			RunID: strconv.Itoa(300 + i), Name: "foo", Arch: "x86_64", Repo: repo,
		}))
	}

	require.NoError(t, db.DeleteRepository(ctx, "terra"))

	_, err := db.GetRepository(ctx, "terra")
	assert.True(t, errkind.Is(err, errkind.NotFound))

	var pkgs []database.Package
	require.NoError(t, db.Cli.Find(&pkgs).Error)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "other", pkgs[0].Repo)

	var builds []database.Build
	require.NoError(t, db.Cli.Find(&builds).Error)
	require.Len(t, builds, 2)
	for _, b := range builds {
		assert.Equal(t, "other", b.Repo)
	}

	runs, err := db.PendingRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "other", runs[0].Repo)

	err = db.DeleteRepository(ctx, "terra")
	assert.True(t, errkind.Is(err, errkind.NotFound))
}
