package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/config"
)

// SendLongMessage sends a potentially long message, splitting it into parts if needed.
// Falls back to plain text if Markdown parsing fails.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) error {
	parts := SplitMessage(text, config.MaxTelegramMessageLen)

	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      FixMarkdown(part),
			ParseMode: models.ParseModeMarkdownV1,
		}
		if markup != nil && i == len(parts)-1 {
			params.ReplyMarkup = markup
		}

		_, err := b.SendMessage(ctx, params)
		if err != nil {
			slog.Warn("markdown send failed, falling back to plain text", "error", err)
			params.Text = part
			params.ParseMode = ""
			if _, err = b.SendMessage(ctx, params); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}

	return nil
}

// SendShortMessage sends one Markdown message, falling back to plain text,
// and returns its id.
func SendShortMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      FixMarkdown(Truncate(text, config.MaxTelegramMessageLen)),
		ParseMode: models.ParseModeMarkdownV1,
	}
	msg, err := b.SendMessage(ctx, params)
	if err != nil {
		params.Text = Truncate(text, config.MaxTelegramMessageLen)
		params.ParseMode = ""
		if msg, err = b.SendMessage(ctx, params); err != nil {
			return 0, fmt.Errorf("send message: %w", err)
		}
	}
	return msg.ID, nil
}

// EditLongMessage replaces the text of an existing message, truncating it
// to one message and dropping its keyboard.
func EditLongMessage(ctx context.Context, b *bot.Bot, chatID int64, messageID int, text string) error {
	text = FixMarkdown(Truncate(text, config.MaxTelegramMessageLen))

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil {
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      text,
		})
	}
	return err
}

// SendDocument uploads a file and returns the id of the message carrying it.
func SendDocument(ctx context.Context, b *bot.Bot, chatID int64, filename string, data []byte, caption string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.SendTimeout)
	defer cancel()

	msg, err := b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		Caption:  Truncate(caption, config.MaxTelegramCaptionLen),
	})
	if err != nil {
		return 0, fmt.Errorf("send document: %w", err)
	}
	return msg.ID, nil
}

// StartUploading sends the "sending file..." action every 4 seconds until
// the returned cancel function is called.
func StartUploading(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		send := func() {
			b.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionUploadDocument,
			})
		}
		send()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				send()
			}
		}
	}()
	return cancel
}
