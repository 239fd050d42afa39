package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/set-night/pagecraft/internal/domain"
	"github.com/set-night/pagecraft/internal/service"
	"github.com/set-night/pagecraft/internal/telegram"
)

// chatSink delivers engine output through the Bot API.
type chatSink struct {
	bot *bot.Bot
}

func (s chatSink) SendText(ctx context.Context, chatID int64, text string) error {
	return telegram.SendLongMessage(ctx, s.bot, chatID, text, nil)
}

func (s chatSink) SendArtifact(ctx context.Context, chatID int64, a domain.Artifact) (int, error) {
	return telegram.SendDocument(ctx, s.bot, chatID, a.Name, a.Content, a.Name)
}

func (s chatSink) SendReceipt(ctx context.Context, chatID int64, text string) (int, error) {
	return telegram.SendShortMessage(ctx, s.bot, chatID, text)
}

// statusSink posts a progress message up front and replaces it with the
// first text the engine sends, which is either the outcome or the error.
type statusSink struct {
	chatSink
	messageID int
}

func newStatusSink(ctx context.Context, b *bot.Bot, chatID int64, status string) service.Sink {
	id, err := telegram.SendShortMessage(ctx, b, chatID, status)
	if err != nil {
		slog.Warn("send status message", "chat_id", chatID, "error", err)
		return chatSink{bot: b}
	}
	return &statusSink{chatSink: chatSink{bot: b}, messageID: id}
}

func (s *statusSink) SendText(ctx context.Context, chatID int64, text string) error {
	if s.messageID == 0 {
		return s.chatSink.SendText(ctx, chatID, text)
	}
	id := s.messageID
	s.messageID = 0

	err := telegram.EditLongMessage(ctx, s.bot, chatID, id, text)
	if err == nil {
		return nil
	}
	slog.Warn("edit status message", "chat_id", chatID, "error", err)
	return s.chatSink.SendText(ctx, chatID, text)
}
