package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/pagecraft/internal/telegram"
)

// statWindow is how far back /stat looks in the operation log.
const statWindow = 7 * 24 * time.Hour

func (h *Handler) handleStat(ctx context.Context, b *bot.Bot, chatID int64) {
	var sb strings.Builder
	sb.WriteString(h.engine.StatReport())

	if h.opLog != nil {
		totals, err := h.opLog.Totals(ctx, time.Now().Add(-statWindow))
		if err != nil {
			slog.Error("load operation totals", "error", err)
		} else if len(totals) > 0 {
			sb.WriteString("\n\n*Last 7 days:*\n")
			for _, t := range totals {
				sb.WriteString(fmt.Sprintf("• %s: %d ok, %d failed\n",
					strings.ReplaceAll(string(t.Op), "_", `\_`), t.Succeeded, t.Failed))
			}
		}
	}

	if err := telegram.SendLongMessage(ctx, b, chatID, strings.TrimRight(sb.String(), "\n"), nil); err != nil {
		slog.Error("send stat", "error", err)
	}
}
