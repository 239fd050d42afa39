package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/config"
	"github.com/set-night/pagecraft/internal/domain"
)

// TelegramLogger mirrors notable events into topics of a log chat.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError     LogType = "error"
	LogTypeOperation LogType = "operation"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.topicID(logType)
	if topicID == 0 {
		return
	}

	message = Truncate(message, config.MaxTelegramMessageLen)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

// Record reports failed operations to the operation topic.
func (l *TelegramLogger) Record(_ context.Context, rec domain.OperationRecord) {
	if rec.State != domain.StateFailed {
		return
	}
	msg := fmt.Sprintf("⚠️ *Operation failed*\n\n*User:* `%d`\n*Operation:* `%s`\n*Kind:* `%s`\n*Inputs:* %d\n*Duration:* %s",
		rec.UserID, rec.Op, rec.ErrorKind, rec.Inputs, rec.Duration.Round(time.Millisecond))
	go l.Log(LogTypeOperation, msg)
}

func (l *TelegramLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeOperation:
		return l.cfg.LogTopicOperation
	default:
		return 0
	}
}
