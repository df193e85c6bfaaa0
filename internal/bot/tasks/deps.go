// Package tasks implements the bot's scheduled background tasks: sweeping
// stale download directories, pruning download history, and database
// maintenance.
package tasks

import (
	"log/slog"

	"github.com/nbrandt/fetchvid/internal/config"
	"github.com/nbrandt/fetchvid/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
