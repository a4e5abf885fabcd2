package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/tgrecall/tgrecall/internal/gemini"
)

const (
	// digestWindow is how far back the digest looks for activity.
	digestWindow = 24 * time.Hour

	// digestMinMessages skips chats too quiet to summarize.
	digestMinMessages = 5

	digestTaskTimeout = 10 * time.Minute
	digestSendTimeout = 10 * time.Second
)

// newDailyDigestTask creates the scheduled task that posts a Gemini-written
// summary of the last day's conversation into every active chat. A failure
// in one chat does not stop the others; all failures are reported together.
func newDailyDigestTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_digest")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled daily digest task...")
		startTime := time.Now()

		timeoutCtx, cancel := context.WithTimeout(ctx, digestTaskTimeout)
		defer cancel()

		end := time.Now().UTC()
		start := end.Add(-digestWindow)

		chatIDs, err := deps.Store.ListActiveChats(timeoutCtx, start)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list active chats", "error", err)
			return fmt.Errorf("daily digest failed: %w", err)
		}
		if len(chatIDs) == 0 {
			log.InfoContext(ctx, "No active chats in the digest window", "duration", time.Since(startTime))
			return nil
		}

		var taskErrs []error
		posted := 0
		for _, chatID := range chatIDs {
			if timeoutCtx.Err() != nil {
				taskErrs = append(taskErrs, timeoutCtx.Err())
				break
			}

			if err := digestChat(timeoutCtx, deps, chatID, start, end); err != nil {
				if errors.Is(err, errChatTooQuiet) {
					log.DebugContext(ctx, "Skipping quiet chat", "chat_id", chatID)
					continue
				}
				log.ErrorContext(ctx, "Digest failed for chat", "error", err, "chat_id", chatID)
				taskErrs = append(taskErrs, fmt.Errorf("chat %s: %w", chatID, err))
				continue
			}
			posted++
		}

		duration := time.Since(startTime)
		if len(taskErrs) > 0 {
			log.WarnContext(ctx, "Daily digest finished with failures",
				"posted", posted, "failed", len(taskErrs), "duration", duration)
			return fmt.Errorf("daily digest: %w", errors.Join(taskErrs...))
		}

		log.InfoContext(ctx, "Daily digest task completed successfully", "posted", posted, "duration", duration)
		return nil
	}
}

// errChatTooQuiet marks chats skipped for having too few messages.
var errChatTooQuiet = errors.New("not enough messages to digest")

func digestChat(ctx context.Context, deps TaskDeps, chatID string, start, end time.Time) error {
	messages, err := deps.Store.GetMessagesInRange(ctx, chatID, start, end)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(messages) < digestMinMessages {
		return errChatTooQuiet
	}

	aiCtx, cancel := context.WithTimeout(ctx, deps.Config.Gemini.RequestTimeout)
	digest, err := deps.GeminiClient.GenerateDigest(aiCtx, gemini.FormatMessages(messages))
	cancel()
	if err != nil {
		return fmt.Errorf("generate digest: %w", err)
	}
	digest = deps.Sanitizer.Flatten(digest)

	chatNum, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, digestSendTimeout)
	defer cancel()
	_, err = deps.TgBot.SendMessage(sendCtx, &tgbot.SendMessageParams{
		ChatID: chatNum,
		Text:   deps.Config.Messages.DigestHeaderMsg + "\n" + digest,
	})
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}
