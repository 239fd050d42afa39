package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/repository"
	"github.com/set-night/pagecraft/internal/service"
	"github.com/set-night/pagecraft/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	engine      *service.Engine
	opLog       *repository.OperationLog
	tgLogger    *telegram.TelegramLogger
	botUsername string
}

// Deps contains all dependencies required to construct a Handler. OpLog is
// nil when no database is configured.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Engine      *service.Engine
	OpLog       *repository.OperationLog
	TgLogger    *telegram.TelegramLogger
	BotUsername string
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		engine:      deps.Engine,
		opLog:       deps.OpLog,
		tgLogger:    deps.TgLogger,
		botUsername: deps.BotUsername,
	}
}
