package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// PanicReporter receives recovered handler panics.
type PanicReporter interface {
	LogError(err error, context string)
}

// Recover returns middleware that recovers from panics, tells the user the
// request failed and reports the panic.
func Recover(reporter PanicReporter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				slog.Error("panic recovered in handler",
					"panic", r,
					"stack", string(debug.Stack()),
				)
				if reporter != nil {
					reporter.LogError(fmt.Errorf("panic: %v", r), "update handler")
				}
				if chatID := chatOf(update); chatID != 0 {
					b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID: chatID,
						Text:   "⚠️ Something went wrong while handling that. Your files are safe, please try again.",
					})
				}
			}()
			next(ctx, b, update)
		}
	}
}

// chatOf returns the chat an update belongs to, or 0.
func chatOf(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}
