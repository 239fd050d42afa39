package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per chat.
type Limiter struct {
	mu     sync.Mutex
	chats  map[int64]*chatLimiter
	limit  rate.Limit
	burst  int
	idle   time.Duration
	now    func() time.Time
	notice string
}

// NewLimiter allows perMinute messages per chat with a burst of the same
// size. Limiters unused for idle are dropped by Cleanup.
func NewLimiter(perMinute int, idle time.Duration) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Limiter{
		chats:  make(map[int64]*chatLimiter),
		limit:  rate.Every(time.Minute / time.Duration(perMinute)),
		burst:  perMinute,
		idle:   idle,
		now:    time.Now,
		notice: "⏳ Too many requests. Please wait a moment.",
	}
}

// Allow reports whether the chat may send another message now.
func (l *Limiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.chats[chatID]
	if !ok {
		c = &chatLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.chats[chatID] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Cleanup drops limiters idle for longer than the idle period and returns
// how many were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, c := range l.chats {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.chats, id)
			removed++
		}
	}
	return removed
}

// RateLimit returns middleware that enforces per-chat message limits.
func RateLimit(l *Limiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !l.Allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   l.notice,
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
