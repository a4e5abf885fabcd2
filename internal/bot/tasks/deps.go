// Package tasks implements the scheduled background jobs of the archive bot:
// database maintenance and the daily chat digest.
package tasks

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/tgrecall/tgrecall/internal/config"
	"github.com/tgrecall/tgrecall/internal/database"
	"github.com/tgrecall/tgrecall/internal/gemini"
	"github.com/tgrecall/tgrecall/internal/sanitize"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger       *slog.Logger
	Store        database.Store
	GeminiClient gemini.Client
	Config       *config.Config
	Sanitizer    *sanitize.Policy

	// TgBot is used by tasks that post into chats, like the daily digest.
	TgBot *tgbot.Bot
}
