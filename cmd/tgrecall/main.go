// Package main contains the entrypoint for the archive bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/tgrecall/tgrecall/internal/bot"
	"github.com/tgrecall/tgrecall/internal/bot/handlers"
	"github.com/tgrecall/tgrecall/internal/bot/tasks"
	"github.com/tgrecall/tgrecall/internal/config"
	"github.com/tgrecall/tgrecall/internal/database"
	"github.com/tgrecall/tgrecall/internal/gemini"
	"github.com/tgrecall/tgrecall/internal/logger"
	"github.com/tgrecall/tgrecall/internal/retrieval"
	"github.com/tgrecall/tgrecall/internal/sanitize"
	"github.com/tgrecall/tgrecall/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// retrieval engine, ai client, bot, scheduler), handles graceful shutdown,
// and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	store := database.NewStore(db, log)

	engine := retrieval.NewEngine(store, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	sanitizer := sanitize.NewTelegramPolicy()

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        store,
		Engine:       engine,
		GeminiClient: gemClient,
		Sanitizer:    sanitizer,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewArchiveHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:       log,
		Store:        store,
		GeminiClient: gemClient,
		Config:       cfg,
		Sanitizer:    sanitizer,
		TgBot:        tg,
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, store, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	// Check if the error is significant (not just context cancellation)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
