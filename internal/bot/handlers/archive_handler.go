package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgrecall/tgrecall/internal/database"
)

const (
	dbSaveTimeout      = 5 * time.Second  // Timeout for a single database save attempt
	dbQueryTimeout     = 15 * time.Second // Timeout for database reads behind a command
	sendMessageTimeout = 10 * time.Second // Timeout for sending a message via Telegram API
)

// NewArchiveHandler returns the default update handler. It archives every
// plain group message the bot can see so that later /ask and /recall queries
// have history to search; commands and service updates are ignored.
func NewArchiveHandler(deps HandlerDeps) bot.HandlerFunc {
	return archiveHandler{deps: deps}.Handle
}

type archiveHandler struct {
	deps HandlerDeps
}

func (h archiveHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "archive")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	text := messageText(msg)
	if text == "" {
		log.DebugContext(ctx, "Skipping message without text or caption",
			"chat_id", msg.Chat.ID, "message_id", msg.ID)
		return
	}
	if strings.HasPrefix(text, "/") {
		log.DebugContext(ctx, "Skipping command message",
			"chat_id", msg.Chat.ID, "message_id", msg.ID)
		return
	}

	record := messageFromUpdate(msg, text)
	SaveMessageWithRetry(ctx, h.deps, record, "group message")
}

// messageText returns the message text, falling back to the media caption.
func messageText(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// senderName picks the display name stored with an archived message:
// username when set, otherwise the profile name, otherwise the numeric ID.
func senderName(from *models.User) string {
	if from.Username != "" {
		return from.Username
	}
	name := strings.TrimSpace(strings.TrimSpace(from.FirstName) + " " + strings.TrimSpace(from.LastName))
	if name != "" {
		return name
	}
	return strconv.FormatInt(from.ID, 10)
}

// messageFromUpdate maps a Telegram message to an archive record.
func messageFromUpdate(msg *models.Message, text string) *database.Message {
	record := &database.Message{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: int64(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Text:      text,
		Sender:    senderName(msg.From),
		ChatTitle: msg.Chat.Title,
	}
	if msg.ReplyToMessage != nil {
		record.ReplyToMessageID = sql.NullInt64{Int64: int64(msg.ReplyToMessage.ID), Valid: true}
	}
	return record
}

// SendAndSaveReply sends text as a reply to the given message and archives
// the bot's own reply so it shows up in later retrievals like any other
// message in the chat.
func SendAndSaveReply(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, replyTo int, text string) {
	log := deps.Logger.With("handler", "reply")
	if b == nil || chatID == 0 || replyTo <= 0 {
		log.ErrorContext(ctx, "Invalid parameters to SendAndSaveReply", "chat_id", chatID, "reply_to", replyTo)
		return
	}

	if text == "" {
		log.WarnContext(ctx, "Empty text provided for reply, using fallback", "chat_id", chatID, "reply_to", replyTo)
		text = deps.Config.Messages.AskNoAnswerMsg
	}

	if ctx.Err() != nil {
		log.ErrorContext(ctx, "Context cancelled before sending reply", "error", ctx.Err(), "chat_id", chatID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	sent, err := b.SendMessage(sendCtx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: replyTo},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply message", "error", err, "chat_id", chatID)
		return
	}

	log.InfoContext(ctx, "Sent reply", "chat_id", chatID, "message_id", sent.ID)

	botInfo := deps.Config.Telegram.BotInfo
	if botInfo == nil || botInfo.ID == 0 {
		log.WarnContext(ctx, "Bot identity unknown, skipping saving bot reply", "chat_id", chatID)
		return
	}
	record := &database.Message{
		ChatID:    strconv.FormatInt(chatID, 10),
		MessageID: int64(sent.ID),
		Timestamp: time.Unix(int64(sent.Date), 0).UTC(),
		Text:      text,
		Sender:    senderName(&models.User{ID: botInfo.ID, Username: botInfo.Username, FirstName: botInfo.FirstName}),
		ChatTitle: sent.Chat.Title,
		ReplyToMessageID: sql.NullInt64{
			Int64: int64(replyTo),
			Valid: true,
		},
	}
	SaveMessageWithRetry(ctx, deps, record, "bot reply")
}

// SaveMessageWithRetry attempts to save a message to the database with retry logic.
// It handles failures and logs appropriate warning messages.
func SaveMessageWithRetry(ctx context.Context, deps HandlerDeps, msg *database.Message, msgType string) {
	log := deps.Logger.With("handler", "archive")
	const maxRetries = 3
	var err error

	for i := range [maxRetries]struct{}{} {
		if ctx.Err() != nil {
			log.WarnContext(ctx, fmt.Sprintf("Context cancelled, aborting %s save attempts", msgType),
				"error", ctx.Err(), "chat_id", msg.ChatID, "attempt", i+1)
			return
		}

		dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
		err = deps.Store.SaveMessage(dbCtx, msg)
		cancel()

		if err == nil {
			log.DebugContext(ctx, fmt.Sprintf("%s saved successfully", msgType),
				"db_message_id", msg.ID, "chat_id", msg.ChatID, "message_id", msg.MessageID)
			return
		}

		log.ErrorContext(ctx, fmt.Sprintf("Failed to save %s, retrying", msgType), "error", err, "chat_id", msg.ChatID, "attempt", i+1)

		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}

	log.ErrorContext(ctx, fmt.Sprintf("Failed to save %s after %d retries", msgType, maxRetries), "last_error", err, "chat_id", msg.ChatID)
}
