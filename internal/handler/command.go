package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/domain"
	"github.com/set-night/pagecraft/internal/middleware"
	"github.com/set-night/pagecraft/internal/service"
	"github.com/set-night/pagecraft/internal/telegram"
)

func (h *Handler) handleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}

	ev := service.CommandEvent{
		UserID:  actor.UserID,
		ChatID:  msg.Chat.ID,
		Text:    msg.Text,
		IsAdmin: actor.IsAdmin,
	}
	if msg.ReplyToMessage != nil {
		ev.ReplyTo = msg.ReplyToMessage.ID
	}

	// Commands with a richer Telegram rendering than the engine's plain reply.
	var op domain.Operation
	if cmd, err := service.ParseCommand(ev.Text, ev.ReplyTo); err == nil {
		op = cmd.Op
		switch op {
		case domain.OpList:
			h.sendList(ctx, b, ev.UserID, ev.ChatID)
			return
		case domain.OpStat:
			if ev.IsAdmin {
				h.handleStat(ctx, b, ev.ChatID)
				return
			}
		}
	}

	h.runCommand(ctx, b, ev, op)
}

// runCommand hands a command to the engine. File operations first post a
// progress message that the outcome replaces.
func (h *Handler) runCommand(ctx context.Context, b *bot.Bot, ev service.CommandEvent, op domain.Operation) {
	var sink service.Sink = chatSink{bot: b}
	if op.IsFileOperation() {
		stop := telegram.StartUploading(ctx, b, ev.ChatID)
		defer stop()
		sink = newStatusSink(ctx, b, ev.ChatID, service.ProgressText(op))
	}

	if err := h.engine.HandleCommand(ctx, sink, ev); err != nil {
		slog.Error("handle command", "user_id", ev.UserID, "text", ev.Text, "error", err)
		h.tgLogger.LogError(err, "command "+ev.Text)
	}
}

func (h *Handler) sendList(ctx context.Context, b *bot.Bot, userID, chatID int64) {
	text, n := h.engine.ListText(userID)

	var markup models.ReplyMarkup
	if n > 0 {
		markup = listKeyboard()
	}
	if err := telegram.SendLongMessage(ctx, b, chatID, text, markup); err != nil {
		slog.Error("send list", "user_id", userID, "error", err)
	}
}

func listKeyboard() *models.InlineKeyboardMarkup {
	return telegram.InlineKeyboard(
		telegram.ButtonRow(
			telegram.InlineButton("📎 Merge all", cbListMerge),
			telegram.InlineButton("🗑 Clear", cbListClear),
		),
	)
}

func (h *Handler) handleListMerge(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerListCallback(ctx, b, update, domain.OpMerge)
}

func (h *Handler) handleListClear(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerListCallback(ctx, b, update, domain.OpClear)
}

// answerListCallback runs a /list keyboard action as if the user typed it.
func (h *Handler) answerListCallback(ctx context.Context, b *bot.Bot, update *models.Update, op domain.Operation) {
	cq := update.CallbackQuery
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	msg := cq.Message.Message
	actor := middleware.GetActor(ctx)
	if msg == nil || actor == nil {
		return
	}

	// Drop the keyboard so the action cannot be repeated from a stale list.
	b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	})

	h.runCommand(ctx, b, service.CommandEvent{
		UserID:  actor.UserID,
		ChatID:  msg.Chat.ID,
		Text:    "/" + string(op),
		IsAdmin: actor.IsAdmin,
	}, op)
}

// Fallback answers plain text that is neither a command nor a file.
func Fallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || strings.HasPrefix(msg.Text, "/") || msg.Chat.Type != models.ChatTypePrivate {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   "📎 Send me a PDF, an image or a Word document, or type /help to see what I can do.",
	})
}
