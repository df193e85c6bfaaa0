package handlers

import (
	"log/slog"

	"github.com/nbrandt/fetchvid/internal/config"
	"github.com/nbrandt/fetchvid/internal/database"
	"github.com/nbrandt/fetchvid/internal/downloader"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Downloader downloader.Downloader
}
