package handlers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/nbrandt/fetchvid/internal/config"
	"github.com/nbrandt/fetchvid/internal/database"
	"github.com/nbrandt/fetchvid/internal/downloader"
	"github.com/nbrandt/fetchvid/internal/urls"
)

const recordSaveTimeout = 5 * time.Second

// sender is the slice of the Telegram client the download workflow needs.
// *bot.Bot satisfies it; tests substitute a fake.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// deliveryMode is the explicit size-routing decision for a downloaded file.
type deliveryMode int

const (
	modeVideo deliveryMode = iota
	modeDocument
	modeTooLarge
)

// deliveryModeFor routes a file by size: inline video up to the video
// limit, document up to the document limit, otherwise undeliverable.
func deliveryModeFor(size int64, cfg config.TelegramConfig) deliveryMode {
	switch {
	case size <= cfg.VideoSizeLimit:
		return modeVideo
	case size <= cfg.DocumentSizeLimit:
		return modeDocument
	default:
		return modeTooLarge
	}
}

// NewDownloadHandler returns the default handler: it scans every
// non-command message for a URL and relays the video behind it.
func NewDownloadHandler(deps HandlerDeps) bot.HandlerFunc {
	h := downloadHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			deps.Logger.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
			return
		}
		h.process(ctx, b, update.Message)
	}
}

type downloadHandler struct {
	deps HandlerDeps
}

// process runs the whole download-and-relay workflow for one message.
// Every exit path releases the temporary file and records the outcome.
func (h downloadHandler) process(ctx context.Context, api sender, msg *models.Message) {
	deps := h.deps
	log := deps.Logger.With("handler", "download", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	url, ok := urls.Extract(msg.Text)
	if !ok {
		log.DebugContext(ctx, "No URL in message, sending hint")
		h.reply(ctx, api, msg.Chat.ID, deps.Config.Messages.NoURL)
		return
	}

	log.InfoContext(ctx, "Handling download request", "url", url)
	start := time.Now()
	record := &database.Download{
		ChatID: msg.Chat.ID,
		UserID: msg.From.ID,
		URL:    url,
	}
	defer h.saveRecord(ctx, record, start)

	h.reply(ctx, api, msg.Chat.ID, deps.Config.Messages.Downloading)
	h.chatAction(ctx, api, msg.Chat.ID, models.ChatActionUploadVideo)

	res, err := deps.Downloader.Download(ctx, url)
	if err != nil {
		log.WarnContext(ctx, "Download failed", "url", url, "error", err)
		record.Outcome = database.OutcomeDownloadFailed
		h.reply(ctx, api, msg.Chat.ID, deps.Config.Messages.DownloadFailed)
		return
	}
	defer res.Cleanup()
	record.FileSize = res.Size

	switch deliveryModeFor(res.Size, deps.Config.Telegram) {
	case modeVideo:
		log.InfoContext(ctx, "Sending as video", "path", res.Path, "size", res.Size)
		record.Outcome = h.sendVideo(ctx, api, msg.Chat.ID, res)

	case modeDocument:
		log.InfoContext(ctx, "Sending as document", "path", res.Path, "size", res.Size)
		h.chatAction(ctx, api, msg.Chat.ID, models.ChatActionUploadDocument)
		record.Outcome = h.sendDocument(ctx, api, msg.Chat.ID, res)

	case modeTooLarge:
		log.InfoContext(ctx, "File exceeds document limit, not sending",
			"size", res.Size, "document_limit", deps.Config.Telegram.DocumentSizeLimit)
		record.Outcome = database.OutcomeTooLarge
		h.reply(ctx, api, msg.Chat.ID, deps.Config.Messages.TooLarge)
	}
}

func (h downloadHandler) sendVideo(ctx context.Context, api sender, chatID int64, res *downloader.Result) string {
	file, err := os.Open(res.Path)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to open downloaded file", "path", res.Path, "error", err)
		h.reply(ctx, api, chatID, h.deps.Config.Messages.SendFailed)
		return database.OutcomeSendFailed
	}
	defer file.Close()

	_, err = api.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:  chatID,
		Video:   &models.InputFileUpload{Filename: filepath.Base(res.Path), Data: file},
		Caption: h.deps.Config.Messages.VideoCaption,
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send video", "path", res.Path, "error", err)
		h.reply(ctx, api, chatID, h.deps.Config.Messages.SendFailed)
		return database.OutcomeSendFailed
	}
	return database.OutcomeSentVideo
}

func (h downloadHandler) sendDocument(ctx context.Context, api sender, chatID int64, res *downloader.Result) string {
	file, err := os.Open(res.Path)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to open downloaded file", "path", res.Path, "error", err)
		h.reply(ctx, api, chatID, h.deps.Config.Messages.SendFailed)
		return database.OutcomeSendFailed
	}
	defer file.Close()

	_, err = api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filepath.Base(res.Path), Data: file},
		Caption:  h.deps.Config.Messages.DocumentCaption,
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send document", "path", res.Path, "error", err)
		h.reply(ctx, api, chatID, h.deps.Config.Messages.SendFailed)
		return database.OutcomeSendFailed
	}
	return database.OutcomeSentDocument
}

func (h downloadHandler) reply(ctx context.Context, api sender, chatID int64, text string) {
	if _, err := api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

func (h downloadHandler) chatAction(ctx context.Context, api sender, chatID int64, action models.ChatAction) {
	if _, err := api.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: action}); err != nil {
		h.deps.Logger.DebugContext(ctx, "Failed to send chat action", "error", err, "chat_id", chatID)
	}
}

// saveRecord persists the request outcome. Uses a detached context so the
// record survives cancellation of the request that produced it.
func (h downloadHandler) saveRecord(ctx context.Context, record *database.Download, start time.Time) {
	if record.Outcome == "" {
		// process returned before a decision was made; nothing to record.
		return
	}
	record.DurationMS = time.Since(start).Milliseconds()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordSaveTimeout)
	defer cancel()

	if err := h.deps.Store.SaveDownload(saveCtx, record); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to record download outcome",
			"chat_id", record.ChatID, "outcome", record.Outcome, "error", err)
	}
}
