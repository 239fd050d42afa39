package handler

import (
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/service"
)

const (
	cbListMerge = "list_merge"
	cbListClear = "list_clear"
)

// Register registers all command, upload and callback handlers on the bot instance.
func (h *Handler) Register() {
	h.bot.RegisterHandlerMatchFunc(h.isCommand, h.handleCommand)
	h.bot.RegisterHandlerMatchFunc(isUpload, h.handleUpload)

	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbListMerge, bot.MatchTypeExact, h.handleListMerge)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbListClear, bot.MatchTypeExact, h.handleListClear)
}

// isCommand matches slash commands meant for this bot; in groups a
// command@OtherBot belongs to another bot.
func (h *Handler) isCommand(update *models.Update) bool {
	msg := update.Message
	return msg != nil && strings.HasPrefix(msg.Text, "/") && service.AddressedTo(msg.Text, h.botUsername)
}

func isUpload(update *models.Update) bool {
	msg := update.Message
	return msg != nil && (msg.Document != nil || len(msg.Photo) > 0)
}
