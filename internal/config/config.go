package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required,notEmpty"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Operation log retention, used only with a database
	OpLogRetention time.Duration `env:"OPLOG_RETENTION" envDefault:"720h"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Session limits
	MaxFilesPerUser int           `env:"MAX_FILES_PER_USER" envDefault:"5"`
	MaxFileSizeMB   int64         `env:"MAX_FILE_SIZE_MB" envDefault:"10"`
	MaxTotalMB      int64         `env:"MAX_TOTAL_MB" envDefault:"200"`
	MaxOutputMB     int64         `env:"MAX_OUTPUT_MB" envDefault:"50"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	EvictionEvery   time.Duration `env:"EVICTION_INTERVAL" envDefault:"1m"`
	TrackOutputs    bool          `env:"TRACK_OUTPUTS" envDefault:"true"`

	// Operations
	MaxRasterPages    int           `env:"MAX_RASTER_PAGES" envDefault:"20"`
	RasterDPI         int           `env:"RASTER_DPI" envDefault:"110"`
	ConversionTimeout time.Duration `env:"CONVERSION_TIMEOUT" envDefault:"45s"`
	OperationTimeout  time.Duration `env:"OPERATION_TIMEOUT" envDefault:"2m"`
	MaxConcurrentJobs int64         `env:"MAX_CONCURRENT_JOBS" envDefault:"4"`

	// External tools
	QPDFPath     string `env:"QPDF_PATH" envDefault:"qpdf"`
	PdftoppmPath string `env:"PDFTOPPM_PATH" envDefault:"pdftoppm"`
	MutoolPath   string `env:"MUTOOL_PATH" envDefault:"mutool"`
	GhostPath    string `env:"GS_PATH" envDefault:"gs"`
	SofficePath  string `env:"SOFFICE_PATH" envDefault:"soffice"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`

	// Server
	Port          int    `env:"PORT" envDefault:"10000"`
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"true"`

	// Logging
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int    `env:"LOG_TOPIC_ERROR"`
	LogTopicOperation int    `env:"LOG_TOPIC_OPERATION"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.MaxFilesPerUser < 1:
		return fmt.Errorf("MAX_FILES_PER_USER must be positive, got %d", c.MaxFilesPerUser)
	case c.MaxFileSizeMB < 1:
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", c.MaxFileSizeMB)
	case c.MaxTotalMB < c.MaxFileSizeMB:
		return fmt.Errorf("MAX_TOTAL_MB (%d) must not be below MAX_FILE_SIZE_MB (%d)", c.MaxTotalMB, c.MaxFileSizeMB)
	case c.MaxConcurrentJobs < 1:
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive, got %d", c.MaxConcurrentJobs)
	case c.ConversionTimeout <= 0 || c.OperationTimeout <= 0:
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) WebhookMode() bool {
	return c.WebhookURL != ""
}

func (c *Config) MaxFileBytes() int64   { return c.MaxFileSizeMB * MB }
func (c *Config) MaxTotalBytes() int64  { return c.MaxTotalMB * MB }
func (c *Config) MaxOutputBytes() int64 { return c.MaxOutputMB * MB }

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
