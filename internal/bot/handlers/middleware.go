// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RequireAdmin wraps a handler so only the configured admin user may run it.
// Updates without an identifiable sender are dropped rather than passed
// through; everyone else gets the unauthorized notice.
func RequireAdmin(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			log := deps.Logger.With("middleware", "require_admin")

			msg := update.Message
			if msg == nil || msg.From == nil {
				log.WarnContext(ctx, "Dropping admin command without sender info", "update_id", update.ID)
				return
			}
			if msg.From.ID == deps.Config.Telegram.AdminUserID {
				next(ctx, b, update)
				return
			}

			log.WarnContext(ctx, "Unauthorized admin command", "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
			_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: msg.Chat.ID,
				Text:   deps.Config.Messages.ErrorUnauthorizedMsg,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send unauthorized notice", "error", err, "chat_id", msg.Chat.ID)
			}
		}
	}
}
