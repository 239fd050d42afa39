package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/pagecraft/internal/domain"
)

type ctxKey string

const ActorKey ctxKey = "actor"

// GetActor extracts the sender of the current update from context.
func GetActor(ctx context.Context) *domain.Actor {
	a, ok := ctx.Value(ActorKey).(*domain.Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor stores an actor in context.
func WithActor(ctx context.Context, a *domain.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// ActorLoader returns middleware that puts the update's sender into context.
func ActorLoader(cfg interface{ IsAdmin(int64) bool }) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatID int64

			if update.Message != nil {
				from = update.Message.From
				chatID = update.Message.Chat.ID
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chatID = update.CallbackQuery.Message.Message.Chat.ID
				}
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			ctx = WithActor(ctx, &domain.Actor{
				UserID:    from.ID,
				ChatID:    chatID,
				FirstName: from.FirstName,
				Username:  from.Username,
				IsAdmin:   cfg.IsAdmin(from.ID),
			})
			next(ctx, b, update)
		}
	}
}
