package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// staticHandler answers a command with a fixed reply from the messages
// configuration. Replies may mention the bot as @botname; the placeholder is
// expanded once setup has resolved the real username.
type staticHandler struct {
	deps  HandlerDeps
	name  string
	reply string
}

func (h staticHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling command", "chat_id", chatID, "user_id", update.Message.From.ID)

	reply := h.reply
	if info := h.deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		reply = strings.ReplaceAll(reply, "@botname", "@"+info.Username)
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
