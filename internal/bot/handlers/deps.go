package handlers

import (
	"log/slog"

	"github.com/tgrecall/tgrecall/internal/config"
	"github.com/tgrecall/tgrecall/internal/database"
	"github.com/tgrecall/tgrecall/internal/gemini"
	"github.com/tgrecall/tgrecall/internal/retrieval"
	"github.com/tgrecall/tgrecall/internal/sanitize"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	Engine       *retrieval.Engine
	GeminiClient gemini.Client
	Sanitizer    *sanitize.Policy
}
