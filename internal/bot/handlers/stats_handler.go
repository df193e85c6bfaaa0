package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/nbrandt/fetchvid/internal/database"
)

// NewStatsHandler returns a handler for the admin-only /stats command,
// summarizing the recorded download history.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil {
		log.WarnContext(ctx, "Stats handler received update with nil message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	stats, err := h.deps.Store.GetStats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load download stats", "error", err)
		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.Messages.SendFailed}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send stats error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	text := formatStats(stats, h.deps.Config.Messages.StatsEmpty)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send stats message", "error", err, "chat_id", chatID)
	}
}

func formatStats(stats *database.Stats, emptyMsg string) string {
	if stats == nil || stats.Total == 0 {
		return emptyMsg
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Downloads handled: %d\n", stats.Total)
	fmt.Fprintf(&sb, "Bytes delivered: %s\n", formatBytes(stats.TotalBytes))

	outcomes := make([]string, 0, len(stats.ByOutcome))
	for outcome := range stats.ByOutcome {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(&sb, "%s: %d\n", outcome, stats.ByOutcome[outcome])
	}

	return strings.TrimRight(sb.String(), "\n")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
