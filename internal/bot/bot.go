// Package bot implements lifecycle management and component orchestration
// for the tgrecall Telegram bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/tgrecall/tgrecall/internal/database"
)

// startupProbeTimeout bounds the archive connectivity check in Run.
const startupProbeTimeout = 5 * time.Second

// Bot ties the Telegram listener and the task scheduler together and
// manages their lifecycle.
type Bot struct {
	logger    *slog.Logger
	store     database.Store
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates the bot orchestrator.
func NewBot(logger *slog.Logger, store database.Store, tgBot *tgbot.Bot, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		store:     store,
		tgBot:     tgBot,
		scheduler: scheduler,
	}
}

// Run verifies the archive is reachable, then starts the Telegram listener
// and the scheduler and blocks until the context is cancelled or a component
// fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()
	if err := b.store.Ping(probeCtx); err != nil {
		return fmt.Errorf("archive store is not reachable: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
