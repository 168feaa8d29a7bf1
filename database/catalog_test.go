package database_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/database/databasetest"
	"github.com/stupid-simple/pkgledger/errkind"
)

func TestDatabase_UpsertPackage(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	key := database.PackageKey{Name: "foo", Repo: "terra", Arch: "x86_64"}

	outcome, err := db.UpsertPackage(ctx, key, "1.0", "1", "pkgs/foo/")
	require.NoError(t, err)
	assert.Equal(t, database.Inserted, outcome)

	outcome, err = db.UpsertPackage(ctx, key, "1.1", "2", "pkgs/foo")
	require.NoError(t, err)
	assert.Equal(t, database.Updated, outcome)

	var pkgs []database.Package
	require.NoError(t, db.Cli.Find(&pkgs).Error)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "1.1", pkgs[0].Version)
	assert.Equal(t, "2", pkgs[0].Release)
	assert.Equal(t, "pkgs/foo", pkgs[0].Dirs)
}

func TestDatabase_UpsertPackage_Concurrent(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	key := database.PackageKey{Name: "foo", Repo: "terra", Arch: "x86_64"}

	var wg sync.WaitGroup
	outcomes := make([]database.UpsertOutcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := db.UpsertPackage(ctx, key, "1.0", "1", "pkgs/foo")
			assert.NoError(t, err)
			outcomes[i] = out
		}()
	}
	wg.Wait()

	var inserted int
	for _, o := range outcomes {
		if o == database.Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	var count int64
	require.NoError(t, db.Cli.Model(&database.Package{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDatabase_ListPackages(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	for _, name := range []string{"alpha", "bravo", "charlie"} {
		_, err := db.UpsertPackage(ctx, database.PackageKey{Name: name, Repo: "terra", Arch: "x86_64"}, "1", "1", "pkgs/"+name)
		require.NoError(t, err)
	}

	pkgs, err := db.ListPackages(ctx, "terra")
	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	assert.Equal(t, "charlie", pkgs[0].Name, "default order is name descending")

	sort, err := database.ParseSort("name asc")
	require.NoError(t, err)
	pkgs, err = db.ListPackages(ctx, "terra",
		database.WithListSort(sort),
		database.WithListLimit(2),
		database.WithListOffset(1),
	)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "bravo", pkgs[0].Name)
	assert.Equal(t, "charlie", pkgs[1].Name)
}

func TestDatabase_ListPackages_Limit(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	_, err := db.ListPackages(ctx, "terra", database.WithListLimit(101))
	assert.True(t, errkind.Is(err, errkind.LimitExceeded))

	_, err = db.ListPackages(ctx, "terra", database.WithListLimit(100))
	assert.NoError(t, err)

	_, err = db.ListPackages(ctx, "terra", database.WithListOffset(-1))
	assert.True(t, errkind.Is(err, errkind.Validation))

	_, err = db.ListPackages(ctx, "missing")
	assert.True(t, errkind.Is(err, errkind.NotFound))
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    database.Sort
		wantErr bool
	}{
		{in: "", want: database.DefaultSort},
		{in: "name", want: database.Sort{Column: database.SortByName}},
		{in: "VER DESC", want: database.Sort{Column: database.SortByVersion, Desc: true}},
		{in: "-arch", want: database.Sort{Column: database.SortByArch, Desc: true}},
		{in: "dirs asc", want: database.Sort{Column: database.SortByDirs}},
		{in: "name; DROP TABLE pkgs", wantErr: true},
		{in: "repo", wantErr: true},
		{in: "name sideways", wantErr: true},
		{in: "-name desc", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := database.ParseSort(tc.in)
			if tc.wantErr {
				assert.True(t, errkind.Is(err, errkind.Validation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDatabase_GetPackage(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	_, err := db.UpsertPackage(ctx, database.PackageKey{Name: "foo", Repo: "terra", Arch: "x86_64"}, "1.0", "1", "pkgs/foo")
	require.NoError(t, err)
	_, err = db.UpsertPackage(ctx, database.PackageKey{Name: "foo", Repo: "terra", Arch: "aarch64"}, "1.0", "1", "pkgs/foo")
	require.NoError(t, err)

	pkg, err := db.GetPackage(ctx, "terra", "foo")
	require.NoError(t, err)
	assert.Equal(t, "aarch64", pkg.Arch)

	// A newer build on one architecture moves the package's dirs with it.
	_, err = db.UpsertPackage(ctx, database.PackageKey{Name: "foo", Repo: "terra", Arch: "x86_64"}, "1.1", "1", "pkgs/foo-next")
	require.NoError(t, err)
	pkg, err = db.GetPackage(ctx, "terra", "foo")
	require.NoError(t, err)
	assert.Equal(t, "x86_64", pkg.Arch)
	assert.Equal(t, "1.1", pkg.Version)
	assert.Equal(t, "pkgs/foo-next", pkg.Dirs)

	_, err = db.GetPackage(ctx, "terra", "bar")
	assert.True(t, errkind.Is(err, errkind.NotFound))
}

func TestDatabase_PackageNamesInDir(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	for _, name := range []string{"foo", "foo-devel"} {
		for _, arch := range []string{"x86_64", "aarch64"} {
			_, err := db.UpsertPackage(ctx, database.PackageKey{Name: name, Repo: "terra", Arch: arch}, "1", "1", "pkgs/foo")
			require.NoError(t, err)
		}
	}
	_, err := db.UpsertPackage(ctx, database.PackageKey{Name: "bar", Repo: "terra", Arch: "x86_64"}, "1", "1", "pkgs/bar")
	require.NoError(t, err)

	names, err := db.PackageNamesInDir(ctx, "terra", "pkgs/foo/")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "foo-devel"}, names)

	names, err = db.PackageNamesInDir(ctx, "terra", "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDatabase_DeletePackage(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()
	databasetest.Repository(t, db, "terra", "https://repos.example.com/terra")

	key := database.PackageKey{Name: "foo", Repo: "terra", Arch: "x86_64"}
	_, err := db.UpsertPackage(ctx, key, "1.0", "1", "pkgs/foo")
	require.NoError(t, err)

	err = db.DeletePackage(ctx, key, "0.9", "1")
	assert.True(t, errkind.Is(err, errkind.NotFound))

	require.NoError(t, db.DeletePackage(ctx, key, "1.0", "1"))
	_, err = db.GetPackage(ctx, "terra", "foo")
	assert.True(t, errkind.Is(err, errkind.NotFound))
}
