package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	pagecraft "github.com/set-night/pagecraft"
	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/convert"
	"github.com/set-night/pagecraft/internal/handler"
	"github.com/set-night/pagecraft/internal/middleware"
	"github.com/set-night/pagecraft/internal/repository"
	"github.com/set-night/pagecraft/internal/service"
	"github.com/set-night/pagecraft/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Operation log is optional
	var opLog *repository.OperationLog
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		migrationsFS, err := fs.Sub(pagecraft.MigrationsFS, "migrations")
		if err != nil {
			slog.Error("failed to load embedded migrations", "error", err)
			os.Exit(1)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		opLog = repository.NewOperationLog(pool)
	}

	// Conversion adapters
	opts := convert.OptionsFromConfig(cfg, logger)
	adapters := service.Adapters{
		PDF:       convert.NewPDFEngine(opts),
		Raster:    convert.NewRasterizer(opts),
		Documents: convert.NewDocumentConverter(opts),
		Images:    convert.NewImageConverter(opts),
	}

	limiter := middleware.NewLimiter(cfg.RateLimitPerMinute, config.RateLimiterIdle)

	var tgLogger *telegram.TelegramLogger
	botOpts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(panicReporter{&tgLogger}),
			middleware.Logging(),
			middleware.RateLimit(limiter),
			middleware.ActorLoader(cfg),
		),
		bot.WithDefaultHandler(handler.Fallback),
	}
	if cfg.WebhookMode() && cfg.WebhookSecret != "" {
		botOpts = append(botOpts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.BotToken, botOpts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	tgLogger = telegram.NewTelegramLogger(b, cfg)

	// Session engine
	stats := service.NewStats()
	recorders := service.Recorders{stats, tgLogger}
	if opLog != nil {
		recorders = append(recorders, opLog)
	}

	orch := service.NewOrchestrator(adapters, service.OrchestratorConfig{
		MaxTotalBytes:    cfg.MaxTotalBytes(),
		MaxOutputBytes:   cfg.MaxOutputBytes(),
		MaxRasterPages:   cfg.MaxRasterPages,
		OperationTimeout: cfg.OperationTimeout,
		MaxConcurrent:    cfg.MaxConcurrentJobs,
	}, recorders, logger)

	store := service.NewSessionStore(service.SessionLimits{
		MaxFiles:      cfg.MaxFilesPerUser,
		MaxFileBytes:  cfg.MaxFileBytes(),
		MaxTotalBytes: cfg.MaxTotalBytes(),
		TTL:           cfg.SessionTTL,
	}, logger)
	go store.RunEviction(ctx, cfg.EvictionEvery)

	engine := service.NewEngine(store, orch, stats, service.EngineConfig{
		TrackOutputs:      cfg.TrackOutputs,
		BundleImagesAbove: config.BundleImagesAbove,
	}, logger)

	// Initialize handler
	h := handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Engine:      engine,
		OpLog:       opLog,
		TgLogger:    tgLogger,
		BotUsername: me.Username,
	})
	h.Register()

	// Housekeeping: idle rate limiters and old operation log rows
	go func() {
		ticker := time.NewTicker(config.RateLimiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					slog.Debug("dropped idle rate limiters", "count", n)
				}
				if opLog == nil {
					continue
				}
				if _, err := opLog.Prune(ctx, time.Now().Add(-cfg.OpLogRetention)); err != nil {
					slog.Error("prune operation log", "error", err)
				}
			}
		}
	}()

	// HTTP server: health check, plus the webhook endpoint in webhook mode
	router := handler.NewRouter(b, cfg.WebhookMode(), func() gin.H {
		sessions, bytes := store.Count()
		return gin.H{"sessions": sessions, "session_bytes": bytes, "abandoned_conversions": convert.Abandoned()}
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			stop()
		}
	}()

	// Start bot
	if cfg.WebhookMode() {
		_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:                cfg.WebhookURL,
			SecretToken:        cfg.WebhookSecret,
			DropPendingUpdates: cfg.DropPendingUpdates,
		})
		if err != nil {
			slog.Error("failed to set webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("starting bot in webhook mode", "username", me.Username, "port", cfg.Port)
		b.StartWebhook(ctx)
	} else {
		_, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{
			DropPendingUpdates: cfg.DropPendingUpdates,
		})
		if err != nil {
			slog.Warn("failed to delete webhook", "error", err)
		}
		slog.Info("starting bot in polling mode", "username", me.Username, "id", me.ID)
		b.Start(ctx)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
	slog.Info("bot stopped gracefully")
}

// panicReporter forwards recovered panics to the Telegram logger once it
// exists; the middleware is built before the bot.
type panicReporter struct {
	logger **telegram.TelegramLogger
}

func (p panicReporter) LogError(err error, context string) {
	if l := *p.logger; l != nil {
		l.LogError(err, context)
	}
}
