package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/util"
)

// settleDelay is how long a file must stay quiet after a change before it
// is sent, so one save that fires several events results in one transfer.
const settleDelay = 500 * time.Millisecond

// WatchAndSend sends cfg.File, then sends it again after every change until
// ctx is cancelled. Each send is its own session, so the receiver stores it
// as a new version. A failed send is logged and watching continues.
//
// sent, when not nil, receives the result of every send.
func WatchAndSend(ctx context.Context, cfg *config.Config, sent chan<- error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace a file by renaming over it,
	// which silently drops a watch on the file itself.
	target, err := filepath.Abs(cfg.File)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", cfg.File, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	send := func() {
		err := sendOnce(ctx, cfg)
		if err != nil && ctx.Err() == nil {
			LogFailure(err)
		}
		if sent != nil {
			select {
			case sent <- err:
			case <-ctx.Done():
			}
		}
	}

	send()
	util.LogInfo("watching %s for changes", cfg.File)

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}
			util.LogDebug("%s changed (%s)", event.Name, event.Op)
			settle.Reset(settleDelay)

		case <-settle.C:
			if info, err := os.Stat(target); err != nil || !info.Mode().IsRegular() {
				util.LogWarning("skipping %s: no longer a regular file", cfg.File)
				continue
			}
			send()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.LogWarning("file watcher: %v", err)
		}
	}
}
