// Package logger provides structured logging for tgrecall. It uses Go's
// slog package with configurable level and output format.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a slog Logger with the given level. If jsonOutput is
// true, logs are formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Middleware logs every incoming Telegram update and how long its handler
// took. The bot only processes message updates, so anything else is logged
// with its type and passed through.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With("update_id", update.ID)

			if update.Message != nil {
				userID := int64(0)
				if update.Message.From != nil {
					userID = update.Message.From.ID
				}
				logEntry = logEntry.With(
					"update_type", "message",
					"message_id", update.Message.ID,
					"chat_id", update.Message.Chat.ID,
					"user_id", userID,
					"text_preview", truncate(update.Message.Text, 50),
				)
			} else {
				logEntry = logEntry.With("update_type", "other")
			}

			logEntry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.DebugContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// truncate shortens s to at most maxRunes runes. Archived text is mostly
// Cyrillic, so cutting on bytes would split characters.
func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 1 {
		return "…"
	}
	return string(runes[:maxRunes-1]) + "…"
}
