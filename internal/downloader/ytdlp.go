package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nbrandt/fetchvid/internal/config"
)

// YTDLP implements Downloader by shelling out to the yt-dlp binary.
type YTDLP struct {
	cfg    config.DownloaderConfig
	log    *slog.Logger
	binary string
}

// NewYTDLP creates a yt-dlp backed downloader. It fails fast if the binary
// is not on PATH so misconfiguration surfaces at startup, not on the first
// user request.
func NewYTDLP(cfg config.DownloaderConfig, logger *slog.Logger) (*YTDLP, error) {
	if logger == nil {
		logger = slog.Default()
	}

	binary, err := exec.LookPath("yt-dlp")
	if err != nil {
		return nil, fmt.Errorf("yt-dlp binary not found on PATH: %w", err)
	}

	return &YTDLP{
		cfg:    cfg,
		log:    logger.With("component", "downloader"),
		binary: binary,
	}, nil
}

// newWithBinary is used by tests to substitute the executable.
func newWithBinary(cfg config.DownloaderConfig, logger *slog.Logger, binary string) *YTDLP {
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{cfg: cfg, log: logger.With("component", "downloader"), binary: binary}
}

// Download fetches the best-quality variant of the video at url into a
// fresh temporary directory. The download is bounded by the configured
// timeout on top of whatever deadline ctx already carries.
func (d *YTDLP) Download(ctx context.Context, url string) (*Result, error) {
	dir, err := os.MkdirTemp(d.cfg.TempDir, "fetchvid-")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	args := d.args(dir, url)
	d.log.InfoContext(ctx, "Starting download", "url", url, "dir", dir)
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		os.RemoveAll(dir)
		classified := classify(stderr.String(), runErr)
		d.log.WarnContext(ctx, "Download failed",
			"url", url,
			"error", classified,
			"stderr_tail", tail(stderr.String(), 300),
			"duration", time.Since(start))
		return nil, classified
	}

	path, err := resolvePath(stdout.String(), dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to stat output: %v", ErrDownloadFailed, err)
	}
	if info.Size() == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, filepath.Base(path))
	}

	d.log.InfoContext(ctx, "Download complete",
		"url", url,
		"path", path,
		"size", info.Size(),
		"duration", time.Since(start))

	return &Result{Path: path, Size: info.Size(), Dir: dir}, nil
}

// args builds the yt-dlp command line for a single download into dir.
func (d *YTDLP) args(dir, url string) []string {
	return []string{
		"-f", d.cfg.Format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, "%(title).64s.%(ext)s"),
		url,
	}
}

// resolvePath picks the downloaded file from yt-dlp's printed filepath,
// falling back to scanning the download directory. yt-dlp may rename the
// output during merging, so the printed path is checked before trusting it.
func resolvePath(stdout, dir string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(lines[i])
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	var found string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || found != "" {
			return err
		}
		found = path
		return filepath.SkipAll
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan download directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("no output file in %s", dir)
	}
	return found, nil
}

// classify maps yt-dlp failures onto the package's sentinel errors.
func classify(stderr string, runErr error) error {
	switch {
	case strings.Contains(stderr, "Unsupported URL"),
		strings.Contains(stderr, "is not a valid URL"):
		return fmt.Errorf("%w: %s", ErrUnsupportedURL, tail(stderr, 200))
	case stderr != "":
		return fmt.Errorf("%w: %s", ErrDownloadFailed, tail(stderr, 200))
	default:
		return fmt.Errorf("%w: %v", ErrDownloadFailed, runErr)
	}
}

// tail returns the last n bytes of s with surrounding whitespace removed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
