package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgrecall/tgrecall/internal/database"
)

// NewStatsHandler returns a handler for the /stats command, which reports
// what the archive currently holds for the chat.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "stats")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	log.InfoContext(ctx, "Handling /stats", "chat_id", chatID, "user_id", msg.From.ID)

	dbCtx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	info, err := deps.Store.GetChatArchiveInfo(dbCtx, strconv.FormatInt(chatID, 10))
	cancel()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		log.WarnContext(ctx, "Stats query timed out", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Config.Messages.ErrorTimeoutMsg)
		return
	case err != nil:
		log.ErrorContext(ctx, "Stats query failed", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Config.Messages.ErrorGeneralMsg)
		return
	}

	if info.MessageCount == 0 {
		h.send(ctx, b, chatID, deps.Config.Messages.EmptyArchiveMsg)
		return
	}

	h.send(ctx, b, chatID, formatArchiveInfo(info))
}

func (h statsHandler) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send stats reply", "error", err, "chat_id", chatID)
	}
}

func formatArchiveInfo(info *database.ChatArchiveInfo) string {
	title := info.ChatTitle
	if title == "" {
		title = "this chat"
	}
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("📈 Archive for %s\nMessages: %d\nSenders: %d\nOldest: %s\nNewest: %s",
		title, info.MessageCount, info.SenderCount,
		info.FirstMessage.UTC().Format(layout), info.LastMessage.UTC().Format(layout))
}
