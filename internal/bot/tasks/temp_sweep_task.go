package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// downloadDirPrefix matches the per-request directories created by the
// downloader. Only entries with this prefix are ever swept, since the
// download area may be the shared OS temp directory.
const downloadDirPrefix = "fetchvid-"

// newTempSweepTask creates the scheduled task that removes leftover
// download directories. Normal requests clean up after themselves; this
// covers crashes between download and cleanup.
func newTempSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "temp_sweep")

	return func(ctx context.Context) error {
		dir := deps.Config.Downloader.TempDir
		if dir == "" {
			dir = os.TempDir()
		}

		removed, err := sweepStaleDownloads(ctx, dir, deps.Config.Downloader.StaleAge, log)
		if err != nil {
			return fmt.Errorf("temp sweep failed: %w", err)
		}
		if removed > 0 {
			log.InfoContext(ctx, "Removed stale download directories", "removed", removed, "dir", dir)
		}
		return nil
	}
}

// sweepStaleDownloads removes download directories in dir whose last
// modification is older than staleAge and returns how many were removed.
func sweepStaleDownloads(ctx context.Context, dir string, staleAge time.Duration, log *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read download area %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-staleAge)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !strings.HasPrefix(entry.Name(), downloadDirPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.WarnContext(ctx, "Failed to remove stale download directory", "path", path, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}
