package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgrecall/tgrecall/internal/gemini"
	"github.com/tgrecall/tgrecall/internal/retrieval"
)

// askPipelineTimeout bounds the whole /ask flow: two Gemini calls plus the
// retrieval queries between them.
const askPipelineTimeout = 3 * time.Minute

// NewAskHandler returns a handler for the /ask command. It turns the question
// into search keywords, retrieves matching archive history and replies with a
// Gemini-generated answer grounded in that history.
func NewAskHandler(deps HandlerDeps) bot.HandlerFunc {
	return askHandler{deps}.Handle
}

type askHandler struct {
	deps HandlerDeps
}

func (h askHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "ask")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	question := commandArgument(msg.Text)
	if question == "" {
		log.InfoContext(ctx, "Received /ask without a question", "chat_id", chatID, "user_id", msg.From.ID)
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.AskNoQuestionMsg}); err != nil {
			log.ErrorContext(ctx, "Failed to send usage message", "error", err, "chat_id", chatID)
		}
		return
	}

	log.InfoContext(ctx, "Handling /ask", "chat_id", chatID, "user_id", msg.From.ID, "question_length", len(question))

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	pipeCtx, cancel := context.WithTimeout(ctx, askPipelineTimeout)
	defer cancel()

	answer, err := h.answer(pipeCtx, chatID, question)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		log.WarnContext(ctx, "Ask pipeline timed out", "error", err, "chat_id", chatID)
		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.ErrorTimeoutMsg}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send timeout message", "error", sendErr, "chat_id", chatID)
		}
		return
	case err != nil:
		log.ErrorContext(ctx, "Ask pipeline failed", "error", err, "chat_id", chatID)
		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.ErrorGeneralMsg}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	SendAndSaveReply(ctx, b, deps, chatID, msg.ID, answer)
}

// answer runs the retrieval pipeline for one question and returns the reply
// text. A question that matches nothing in the archive is not an error; the
// configured no-results notice is returned instead.
func (h askHandler) answer(ctx context.Context, chatID int64, question string) (string, error) {
	deps := h.deps
	cfg := deps.Config
	log := deps.Logger.With("handler", "ask")

	kwCtx, cancel := context.WithTimeout(ctx, cfg.Gemini.RequestTimeout)
	keywords, err := deps.GeminiClient.GenerateKeywords(kwCtx, question, cfg.Retrieval.MaxKeywords)
	cancel()
	if err != nil {
		return "", fmt.Errorf("keyword generation: %w", err)
	}
	log.DebugContext(ctx, "Generated search keywords", "chat_id", chatID, "keywords", keywords)

	end := time.Now().UTC()
	req := retrieval.Request{
		ChatID:        strconv.FormatInt(chatID, 10),
		Keywords:      keywords,
		Start:         end.AddDate(0, 0, -cfg.Retrieval.WindowDays),
		End:           end,
		ContextRadius: cfg.Retrieval.ContextRadius,
		ReplyDepth:    cfg.Retrieval.ReplyDepth,
	}

	if cfg.Retrieval.CharBudget > 0 {
		kept, err := deps.Engine.OptimizeKeywords(ctx, req, cfg.Retrieval.CharBudget)
		if err != nil {
			return "", fmt.Errorf("keyword optimization: %w", err)
		}
		if len(kept) < len(req.Keywords) {
			log.InfoContext(ctx, "Dropped keywords to fit character budget",
				"chat_id", chatID, "requested", len(req.Keywords), "kept", len(kept))
		}
		req.Keywords = kept
	}

	result, err := deps.Engine.Retrieve(ctx, req)
	if err != nil {
		return "", fmt.Errorf("retrieval: %w", err)
	}
	if len(result.Messages) == 0 {
		log.InfoContext(ctx, "No archived messages matched", "chat_id", chatID, "keywords", req.Keywords)
		return cfg.Messages.NoResultsMsg, nil
	}
	log.InfoContext(ctx, "Retrieved archive context",
		"chat_id", chatID, "messages", len(result.Messages),
		"keyword_matches", result.Stats.Keyword.Count,
		"context_messages", result.Stats.Context.Count,
		"reply_chain_messages", result.Stats.Answer.Count)

	transcript := gemini.BuildTranscript(result.Messages)

	ansCtx, cancel := context.WithTimeout(ctx, cfg.Gemini.RequestTimeout)
	answer, err := deps.GeminiClient.GenerateAnswer(ansCtx, question, transcript)
	cancel()
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	answer = deps.Sanitizer.Flatten(answer)

	return answer + "\n\n" + retrievalSummary(result.Stats), nil
}
