package fileutils

import (
	"context"
	"time"
)

// WatchFile polls the content hash of path every interval and sends on the
// returned channel when it changes. The channel is closed when ctx is done.
// Read errors go to onErr and leave the last known hash in place.
func WatchFile(ctx context.Context, path string, interval time.Duration, onErr func(err error)) (<-chan struct{}, error) {
	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			hash, err := ComputeFileHash(path)
			if err != nil {
				onErr(err)
				continue
			}
			if hash == lastHash {
				continue
			}
			lastHash = hash

			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
