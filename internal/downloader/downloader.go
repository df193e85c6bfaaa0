// Package downloader fetches videos from URLs by driving the yt-dlp
// binary. Each download gets its own temporary directory which the caller
// must release via Result.Cleanup once the file has been delivered.
package downloader

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

var (
	// ErrUnsupportedURL means yt-dlp does not know how to extract from the site.
	ErrUnsupportedURL = errors.New("unsupported URL")
	// ErrDownloadFailed covers extraction and network failures.
	ErrDownloadFailed = errors.New("download failed")
	// ErrEmptyFile means extraction reported success but produced no data.
	ErrEmptyFile = errors.New("downloaded file is empty")
)

// Result describes a completed download. The file lives inside a dedicated
// temporary directory and must be released with Cleanup.
type Result struct {
	// Path is the absolute path of the downloaded media file.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Dir is the per-request temporary directory containing Path.
	Dir string
}

// Cleanup removes the download's temporary directory and everything in it.
// It is safe to call on every exit path, including after send failures,
// and safe to call more than once.
func (r *Result) Cleanup() {
	if r == nil || r.Dir == "" {
		return
	}
	if err := os.RemoveAll(r.Dir); err != nil {
		slog.Error("Failed to remove download directory", "dir", r.Dir, "error", err)
		return
	}
	r.Dir = ""
}

// Downloader retrieves the best-quality video behind a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url string) (*Result, error)
}
