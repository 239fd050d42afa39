package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/domain"
	"github.com/set-night/pagecraft/internal/middleware"
	"github.com/set-night/pagecraft/internal/service"
	"github.com/set-night/pagecraft/internal/telegram"
)

func (h *Handler) handleUpload(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	sink := chatSink{bot: b}
	chatID := msg.Chat.ID

	ev, fileID, size := uploadOf(msg)
	ev.UserID = actor.UserID
	ev.ChatID = chatID

	limit := h.cfg.MaxFileBytes()
	if size > limit {
		h.reject(ctx, sink, chatID, ev.Filename, limit)
		return
	}

	data, _, err := telegram.DownloadFile(ctx, b, fileID, limit)
	if errors.Is(err, telegram.ErrFileTooLarge) {
		h.reject(ctx, sink, chatID, ev.Filename, limit)
		return
	}
	if err != nil {
		slog.Error("download upload", "user_id", actor.UserID, "file", ev.Filename, "error", err)
		sink.SendText(ctx, chatID, "⚠️ Could not download the file from Telegram. Please send it again.")
		return
	}
	ev.Content = data

	if err := h.engine.HandleUpload(ctx, sink, ev); err != nil {
		slog.Error("handle upload", "user_id", actor.UserID, "file", ev.Filename, "error", err)
		h.tgLogger.LogError(err, "upload "+ev.Filename)
	}
}

// uploadOf describes the file carried by a message. Photos arrive without a
// filename and are always JPEG; the largest size is used.
func uploadOf(msg *models.Message) (service.UploadEvent, string, int64) {
	if doc := msg.Document; doc != nil {
		name := doc.FileName
		if name == "" {
			name = fmt.Sprintf("file_%d", msg.ID)
		}
		return service.UploadEvent{
			MessageID: msg.ID,
			Filename:  name,
			MimeType:  doc.MimeType,
		}, doc.FileID, doc.FileSize
	}

	photo := msg.Photo[len(msg.Photo)-1]
	return service.UploadEvent{
		MessageID:    msg.ID,
		Filename:     fmt.Sprintf("photo_%d.jpg", msg.ID),
		MimeType:     "image/jpeg",
		DeclaredKind: domain.KindImage,
	}, photo.FileID, int64(photo.FileSize)
}

func (h *Handler) reject(ctx context.Context, sink service.Sink, chatID int64, name string, limit int64) {
	err := domain.NewError(domain.ErrCapacity, name, fmt.Sprintf("files up to %d MB are accepted", h.cfg.MaxFileSizeMB))
	slog.Debug("upload rejected", "file", name, "limit", limit)
	sink.SendText(ctx, chatID, service.Describe(err))
}
