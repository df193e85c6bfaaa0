package database

import "time"

// Outcome classifies how a download request ended.
const (
	OutcomeSentVideo      = "sent_video"
	OutcomeSentDocument   = "sent_document"
	OutcomeTooLarge       = "too_large"
	OutcomeDownloadFailed = "download_failed"
	OutcomeSendFailed     = "send_failed"
)

// Download is one handled download request, recorded after the temporary
// file has been released. FileSize is zero when the download itself failed.
type Download struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID     int64  `db:"chat_id"`
	UserID     int64  `db:"user_id"`
	URL        string `db:"url"`
	Outcome    string `db:"outcome"`
	FileSize   int64  `db:"file_size"`
	DurationMS int64  `db:"duration_ms"`
}

// Stats aggregates the download history for the /stats command.
type Stats struct {
	Total      int64 `db:"total"`
	TotalBytes int64 `db:"total_bytes"`

	ByOutcome map[string]int64
}
