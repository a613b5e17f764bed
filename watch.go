package main

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docship/docship/internal/graph"
	"github.com/docship/docship/internal/mirror"
)

// debounceWindow coalesces filesystem event bursts (editors write several
// events per save) into a single re-upload.
const debounceWindow = 2 * time.Second

// watchAndMirror runs an initial mirror session, then re-runs one whenever
// the source tree changes. The ledger makes re-runs cheap: unchanged files
// are skipped, so a watch cycle uploads only what actually moved.
func watchAndMirror(ctx context.Context, client *graph.Client, session mirror.SessionConfig, logger *slog.Logger) error {
	if _, err := mirror.Run(ctx, client, session, logger); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, session.Source); err != nil {
		return err
	}

	logger.Info("watching for changes", slog.String("source", session.Source))

	var debounce *time.Timer

	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			logger.Debug("filesystem event", slog.String("op", event.Op.String()), slog.String("name", event.Name))

			// New directories must be watched before their contents settle.
			if event.Op.Has(fsnotify.Create) {
				if err := addWatchDirs(watcher, event.Name); err != nil {
					logger.Warn("adding watch failed", slog.String("error", err.Error()))
				}
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(debounceWindow, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-pending:
			report, runErr := mirror.Run(ctx, client, session, logger)
			if runErr != nil {
				return runErr
			}

			logger.Info("watch cycle complete", slog.String("report", report.Summary()))
		}
	}
}

// addWatchDirs registers root and every directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// The path may have vanished between event and walk.
			return nil //nolint:nilerr // transient races are expected under watch
		}

		if d.IsDir() {
			return watcher.Add(path)
		}

		return nil
	})
}
