// Package config manages application configuration from config.yaml,
// BOT_-prefixed environment variables, and default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram credentials and the platform's delivery
// size limits. The limits are configuration rather than constants because
// they track Telegram policy, which changes independently of this code.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	// VideoSizeLimit is the largest file (bytes) sent as an inline video.
	VideoSizeLimit int64 `mapstructure:"video_size_limit" validate:"required,gt=0"`
	// DocumentSizeLimit is the largest file (bytes) sent at all; files
	// between the two limits go out as documents.
	DocumentSizeLimit int64 `mapstructure:"document_size_limit" validate:"required,gtefield=VideoSizeLimit"`

	// BotInfo is populated at startup from GetMe and is not read from config.
	BotInfo *models.User `mapstructure:"-"`
}

// DownloaderConfig controls the yt-dlp invocation.
type DownloaderConfig struct {
	// TempDir is where per-request download directories are created.
	// Empty means the OS temp directory.
	TempDir string `mapstructure:"temp_dir"`
	// Format is the yt-dlp format selector.
	Format string `mapstructure:"format" validate:"required"`
	// Timeout bounds a single download end to end.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,min=10s,max=1h"`
	// StaleAge is how old a leftover entry in TempDir must be before the
	// sweep task removes it.
	StaleAge time.Duration `mapstructure:"stale_age" validate:"required,min=1m"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// HistoryRetention is how long download history rows are kept.
	HistoryRetention time.Duration `mapstructure:"history_retention" validate:"required,min=1h"`
}

// TaskConfig enables and schedules a single background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds every user-facing reply the bot sends, so
// deployments can rephrase them without a rebuild.
type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"         validate:"required"`
	Help            string `mapstructure:"help"            validate:"required"`
	NoURL           string `mapstructure:"no_url"          validate:"required"`
	Downloading     string `mapstructure:"downloading"     validate:"required"`
	DownloadFailed  string `mapstructure:"download_failed" validate:"required"`
	TooLarge        string `mapstructure:"too_large"       validate:"required"`
	SendFailed      string `mapstructure:"send_failed"     validate:"required"`
	VideoCaption    string `mapstructure:"video_caption"`
	DocumentCaption string `mapstructure:"document_caption"`
	Unauthorized    string `mapstructure:"unauthorized" validate:"required"`
	StatsEmpty      string `mapstructure:"stats_empty"  validate:"required"`
}

// Config is the root application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// LoadConfig reads configuration from the given path, layering it over
// defaults and under BOT_* environment variables, then validates the result.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	// Registered so viper picks the values up from BOT_* environment
	// variables even when the config file omits the keys entirely.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	// Telegram bot API caps: 50 MiB for sendVideo uploads, 2 GiB overall.
	v.SetDefault("telegram.video_size_limit", int64(50*1024*1024))
	v.SetDefault("telegram.document_size_limit", int64(2*1024*1024*1024))

	v.SetDefault("downloader.temp_dir", "")
	v.SetDefault("downloader.format", "bestvideo+bestaudio/best")
	v.SetDefault("downloader.timeout", 15*time.Minute)
	v.SetDefault("downloader.stale_age", time.Hour)

	v.SetDefault("database.path", "fetchvid.db")
	v.SetDefault("database.history_retention", 30*24*time.Hour)

	v.SetDefault("scheduler.tasks", map[string]any{
		"temp_sweep":      map[string]any{"enabled": true, "schedule": "*/30 * * * *"},
		"history_prune":   map[string]any{"enabled": true, "schedule": "30 3 * * *"},
		"sql_maintenance": map[string]any{"enabled": true, "schedule": "0 4 * * 0"},
	})

	v.SetDefault("messages.welcome", "Hi! Send me a video URL and I'll fetch it for you. Large videos come back as documents.")
	v.SetDefault("messages.help", "Send a message containing an http(s) video link. I download the best available quality and send it back: small files as a playable video, bigger ones as a document.")
	v.SetDefault("messages.no_url", "I couldn't find a link in that message. Send me a URL starting with http or https.")
	v.SetDefault("messages.downloading", "Downloading, this can take a while...")
	v.SetDefault("messages.download_failed", "Sorry, I couldn't download that video. Check the URL and try again.")
	v.SetDefault("messages.too_large", "That video is too large to deliver over Telegram.")
	v.SetDefault("messages.send_failed", "The download worked but sending the file failed. Please try again later.")
	v.SetDefault("messages.video_caption", "Here is your video.")
	v.SetDefault("messages.document_caption", "Here is your video (sent as a document because of its size).")
	v.SetDefault("messages.unauthorized", "You are not authorized to use this command.")
	v.SetDefault("messages.stats_empty", "No downloads recorded yet.")
}
