package config

import "time"

const (
	MB = 1024 * 1024

	// Telegram limits
	MaxTelegramMessageLen = 4096
	MaxTelegramCaptionLen = 1024

	// Download timeout for a single Telegram file
	DownloadTimeout = 60 * time.Second

	// Delivery timeout for a single outbound file
	SendTimeout = 60 * time.Second

	// Shared upper bound for typo suggestions
	MaxSuggestionDistance = 3

	// Idle chat limiters are dropped after this long
	RateLimiterIdle = 10 * time.Minute

	// Page images are bundled into one zip above this count
	BundleImagesAbove = 1

	// Longest generated filename stem
	MaxFilenameStem = 64
)
