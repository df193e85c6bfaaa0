package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/nbrandt/fetchvid/internal/config"
	"github.com/nbrandt/fetchvid/internal/database"
	"github.com/nbrandt/fetchvid/internal/downloader"
)

type fakeSender struct {
	messages    []string
	videos      []string
	documents   []string
	chatActions []models.ChatAction

	videoErr    error
	documentErr error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, params.Text)
	return &models.Message{}, nil
}

func (f *fakeSender) SendVideo(_ context.Context, params *bot.SendVideoParams) (*models.Message, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	upload, ok := params.Video.(*models.InputFileUpload)
	if !ok {
		return nil, errors.New("video is not a file upload")
	}
	f.videos = append(f.videos, upload.Filename)
	return &models.Message{}, nil
}

func (f *fakeSender) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	if f.documentErr != nil {
		return nil, f.documentErr
	}
	upload, ok := params.Document.(*models.InputFileUpload)
	if !ok {
		return nil, errors.New("document is not a file upload")
	}
	f.documents = append(f.documents, upload.Filename)
	return &models.Message{}, nil
}

func (f *fakeSender) SendChatAction(_ context.Context, params *bot.SendChatActionParams) (bool, error) {
	f.chatActions = append(f.chatActions, params.Action)
	return true, nil
}

type fakeDownloader struct {
	downloadFn func(ctx context.Context, url string) (*downloader.Result, error)
	calls      int
}

func (f *fakeDownloader) Download(ctx context.Context, url string) (*downloader.Result, error) {
	f.calls++
	return f.downloadFn(ctx, url)
}

type fakeStore struct {
	saved []*database.Download
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SaveDownload(_ context.Context, dl *database.Download) error {
	f.saved = append(f.saved, dl)
	return nil
}

func (f *fakeStore) GetStats(context.Context) (*database.Stats, error) {
	return &database.Stats{ByOutcome: map[string]int64{}}, nil
}

func (f *fakeStore) DeleteDownloadsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error { return nil }

const (
	testVideoLimit    = 100
	testDocumentLimit = 1000
)

func testDeps(store database.Store, dl downloader.Downloader) HandlerDeps {
	return HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{
			Telegram: config.TelegramConfig{
				Token:             "t",
				AdminUserID:       1,
				VideoSizeLimit:    testVideoLimit,
				DocumentSizeLimit: testDocumentLimit,
			},
			Messages: config.MessagesConfig{
				NoURL:           "no url",
				Downloading:     "downloading",
				DownloadFailed:  "download failed",
				TooLarge:        "too large",
				SendFailed:      "send failed",
				VideoCaption:    "video caption",
				DocumentCaption: "document caption",
			},
		},
		Store:      store,
		Downloader: dl,
	}
}

// makeResult creates a real file of the given size inside its own
// directory so cleanup behavior can be observed.
func makeResult(t *testing.T, size int64) *downloader.Result {
	t.Helper()

	dir, err := os.MkdirTemp(t.TempDir(), "dl-")
	if err != nil {
		t.Fatalf("failed to create result dir: %v", err)
	}
	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("failed to write result file: %v", err)
	}
	return &downloader.Result{Path: path, Size: size, Dir: dir}
}

func testMessage(text string) *models.Message {
	return &models.Message{
		ID:   1,
		Chat: models.Chat{ID: 99},
		From: &models.User{ID: 7},
		Text: text,
	}
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("%s still exists after request completed", path)
	}
}

func TestDeliveryModeFor(t *testing.T) {
	t.Parallel()

	cfg := config.TelegramConfig{VideoSizeLimit: testVideoLimit, DocumentSizeLimit: testDocumentLimit}

	tests := []struct {
		name string
		size int64
		want deliveryMode
	}{
		{"well under video limit", 10, modeVideo},
		{"exactly video limit", testVideoLimit, modeVideo},
		{"just over video limit", testVideoLimit + 1, modeDocument},
		{"exactly document limit", testDocumentLimit, modeDocument},
		{"just over document limit", testDocumentLimit + 1, modeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := deliveryModeFor(tt.size, cfg); got != tt.want {
				t.Errorf("deliveryModeFor(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}

func TestProcessNoURL(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return nil, errors.New("should not be called")
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("hello"))

	if dl.calls != 0 {
		t.Errorf("downloader called %d times for URL-less message, want 0", dl.calls)
	}
	if len(sender.videos)+len(sender.documents) != 0 {
		t.Error("no file should be sent for a URL-less message")
	}
	if len(sender.messages) != 1 || sender.messages[0] != "no url" {
		t.Errorf("messages = %v, want a single hint", sender.messages)
	}
	if len(store.saved) != 0 {
		t.Errorf("recorded %d downloads for URL-less message, want 0", len(store.saved))
	}
}

func TestProcessSendsSmallFileAsVideo(t *testing.T) {
	t.Parallel()

	res := makeResult(t, 50)
	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return res, nil
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("check this out https://youtube.example/watch?v=abc"))

	if len(sender.videos) != 1 {
		t.Fatalf("videos sent = %d, want 1", len(sender.videos))
	}
	if len(sender.documents) != 0 {
		t.Errorf("documents sent = %d, want 0", len(sender.documents))
	}
	if sender.videos[0] != "video.mp4" {
		t.Errorf("video filename = %q, want video.mp4", sender.videos[0])
	}

	if len(store.saved) != 1 {
		t.Fatalf("recorded %d downloads, want 1", len(store.saved))
	}
	record := store.saved[0]
	if record.Outcome != database.OutcomeSentVideo {
		t.Errorf("outcome = %q, want %q", record.Outcome, database.OutcomeSentVideo)
	}
	if record.FileSize != 50 {
		t.Errorf("recorded size = %d, want 50", record.FileSize)
	}
	if record.URL != "https://youtube.example/watch?v=abc" {
		t.Errorf("recorded url = %q", record.URL)
	}

	assertGone(t, res.Path)
}

func TestProcessSendsMediumFileAsDocument(t *testing.T) {
	t.Parallel()

	res := makeResult(t, 500)
	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return res, nil
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("https://youtube.example/watch?v=abc"))

	if len(sender.documents) != 1 {
		t.Fatalf("documents sent = %d, want 1", len(sender.documents))
	}
	if len(sender.videos) != 0 {
		t.Errorf("videos sent = %d, want 0", len(sender.videos))
	}
	if store.saved[0].Outcome != database.OutcomeSentDocument {
		t.Errorf("outcome = %q, want %q", store.saved[0].Outcome, database.OutcomeSentDocument)
	}

	foundUploadDocument := false
	for _, action := range sender.chatActions {
		if action == models.ChatActionUploadDocument {
			foundUploadDocument = true
		}
	}
	if !foundUploadDocument {
		t.Error("expected an upload_document chat action before sending")
	}

	assertGone(t, res.Path)
}

func TestProcessRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	res := makeResult(t, 2000)
	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return res, nil
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("https://youtube.example/watch?v=abc"))

	if len(sender.videos)+len(sender.documents) != 0 {
		t.Error("no send should be attempted for an oversized file")
	}
	lastMsg := sender.messages[len(sender.messages)-1]
	if lastMsg != "too large" {
		t.Errorf("last message = %q, want too-large notice", lastMsg)
	}
	if store.saved[0].Outcome != database.OutcomeTooLarge {
		t.Errorf("outcome = %q, want %q", store.saved[0].Outcome, database.OutcomeTooLarge)
	}

	assertGone(t, res.Path)
}

func TestProcessDownloadFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return nil, downloader.ErrUnsupportedURL
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("https://unsupported.example/page"))

	if len(sender.videos)+len(sender.documents) != 0 {
		t.Error("no send should follow a failed download")
	}
	lastMsg := sender.messages[len(sender.messages)-1]
	if lastMsg != "download failed" {
		t.Errorf("last message = %q, want download-failure notice", lastMsg)
	}
	if store.saved[0].Outcome != database.OutcomeDownloadFailed {
		t.Errorf("outcome = %q, want %q", store.saved[0].Outcome, database.OutcomeDownloadFailed)
	}
}

func TestProcessSendFailureStillCleansUp(t *testing.T) {
	t.Parallel()

	res := makeResult(t, 50)
	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return res, nil
	}}
	sender := &fakeSender{videoErr: errors.New("telegram rejected upload")}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("https://youtube.example/watch?v=abc"))

	lastMsg := sender.messages[len(sender.messages)-1]
	if lastMsg != "send failed" {
		t.Errorf("last message = %q, want send-failure notice", lastMsg)
	}
	if store.saved[0].Outcome != database.OutcomeSendFailed {
		t.Errorf("outcome = %q, want %q", store.saved[0].Outcome, database.OutcomeSendFailed)
	}

	assertGone(t, res.Path)
	assertGone(t, res.Dir)
}

func TestProcessAnnouncesDownload(t *testing.T) {
	t.Parallel()

	res := makeResult(t, 50)
	store := &fakeStore{}
	dl := &fakeDownloader{downloadFn: func(context.Context, string) (*downloader.Result, error) {
		return res, nil
	}}
	sender := &fakeSender{}

	h := downloadHandler{testDeps(store, dl)}
	h.process(context.Background(), sender, testMessage("https://youtube.example/watch?v=abc"))

	if len(sender.messages) == 0 || sender.messages[0] != "downloading" {
		t.Errorf("messages = %v, want downloading notice first", sender.messages)
	}
	if len(sender.chatActions) == 0 || sender.chatActions[0] != models.ChatActionUploadVideo {
		t.Errorf("chat actions = %v, want upload_video first", sender.chatActions)
	}
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	if got := formatStats(&database.Stats{}, "empty"); got != "empty" {
		t.Errorf("formatStats(zero) = %q, want %q", got, "empty")
	}

	stats := &database.Stats{
		Total:      3,
		TotalBytes: 1536,
		ByOutcome: map[string]int64{
			database.OutcomeSentVideo:      2,
			database.OutcomeDownloadFailed: 1,
		},
	}
	got := formatStats(stats, "empty")
	for _, want := range []string{"Downloads handled: 3", "1.5 KiB", "sent_video: 2", "download_failed: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatStats output %q missing %q", got, want)
		}
	}
}
