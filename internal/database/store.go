package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the database operations used by handlers and tasks.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveDownload inserts a download history record.
	SaveDownload(ctx context.Context, dl *Download) error

	// GetStats aggregates the download history.
	GetStats(ctx context.Context) (*Stats, error)

	// DeleteDownloadsBefore removes history rows created before cutoff and
	// returns how many were deleted.
	DeleteDownloadsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs VACUUM and ANALYZE.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveDownload(ctx context.Context, dl *Download) error {
	if dl == nil {
		return fmt.Errorf("cannot save nil download")
	}
	if dl.ChatID == 0 {
		return fmt.Errorf("download must have a non-zero chat_id")
	}
	if dl.URL == "" {
		return fmt.Errorf("download must have a non-empty url")
	}
	if dl.Outcome == "" {
		return fmt.Errorf("download must have an outcome")
	}

	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO downloads (created_at, chat_id, user_id, url, outcome, file_size, duration_ms)
		VALUES (:created_at, :chat_id, :user_id, :url, :outcome, :file_size, :duration_ms)`

	res, err := s.db.NamedExecContext(ctx, query, dl)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save download record",
			"chat_id", dl.ChatID, "outcome", dl.Outcome, "error", err)
		return fmt.Errorf("failed to save download record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		dl.ID = uint(id)
	}
	return nil
}

func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByOutcome: make(map[string]int64)}

	const totalsQuery = `
		SELECT COUNT(*) AS total, COALESCE(SUM(file_size), 0) AS total_bytes
		FROM downloads`
	if err := s.db.GetContext(ctx, stats, totalsQuery); err != nil {
		return nil, fmt.Errorf("failed to query download totals: %w", err)
	}

	rows := []struct {
		Outcome string `db:"outcome"`
		Count   int64  `db:"count"`
	}{}
	const outcomesQuery = `
		SELECT outcome, COUNT(*) AS count
		FROM downloads
		GROUP BY outcome`
	if err := s.db.SelectContext(ctx, &rows, outcomesQuery); err != nil {
		return nil, fmt.Errorf("failed to query download outcomes: %w", err)
	}
	for _, row := range rows {
		stats.ByOutcome[row.Outcome] = row.Count
	}

	return stats, nil
}

func (s *sqlxStore) DeleteDownloadsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old download records: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted download records: %w", err)
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "Pruned download history", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance statement %s failed: %w", stmt, err)
		}
	}
	return nil
}
