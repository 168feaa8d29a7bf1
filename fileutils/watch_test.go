package fileutils_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stupid-simple/pkgledger/fileutils"
)

const pollInterval = 10 * time.Millisecond

func TestWatchFile_NotChanged(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(testPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, pollInterval, func(err error) {
		t.Error(err)
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-watcher:
		t.Errorf("expected no change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchFile_Changed(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(testPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, pollInterval, func(err error) {
		t.Error(err)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(testPath, []byte("listen: :9000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-watcher:
	case <-time.After(2 * time.Second):
		t.Errorf("expected change")
	}
}

func TestWatchFile_ClosedOnCancel(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(testPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	watcher, err := fileutils.WatchFile(ctx, testPath, pollInterval, func(error) {})
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-watcher:
		if ok {
			t.Errorf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Errorf("watcher not closed")
	}
}

func TestWatchFile_Missing(t *testing.T) {
	_, err := fileutils.WatchFile(context.Background(), filepath.Join(t.TempDir(), "missing"), pollInterval, func(error) {})
	if err == nil {
		t.Error("expected an error")
	}
}
