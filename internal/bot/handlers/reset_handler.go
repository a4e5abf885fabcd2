package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// resetTimeout bounds the archive wipe; deleting a large chat rewrites the
// search table too.
const resetTimeout = 30 * time.Second

// NewResetHandler returns a handler for the /reset command. It wipes the
// archive for the current chat and requires an explicit "confirm" argument
// so a bare /reset cannot destroy history.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID

	if !strings.EqualFold(commandArgument(update.Message.Text), "confirm") {
		log.InfoContext(ctx, "Reset requested without confirmation", "chat_id", chatID, "user_id", update.Message.From.ID)
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.ResetUsageMsg,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send reset usage message", "error", err, "chat_id", chatID)
		}
		return
	}

	log.InfoContext(ctx, "Admin requested archive reset", "chat_id", chatID, "user_id", update.Message.From.ID)

	timeoutCtx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()

	deleted, err := h.deps.Store.DeleteChatMessages(timeoutCtx, strconv.FormatInt(chatID, 10))

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "Reset operation timed out or was cancelled", "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.ResetTimeoutMsg,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send timeout message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	if err != nil {
		log.ErrorContext(ctx, "Failed to reset archive", "error", err, "chat_id", chatID)
		_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.ResetErrorMsg,
		})
		if sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	log.InfoContext(ctx, "Archive cleared", "chat_id", chatID, "deleted", deleted)

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   h.deps.Config.Messages.ResetConfirmMsg,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reset confirmation message", "error", err, "chat_id", chatID)
	}
}
