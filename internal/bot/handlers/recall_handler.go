package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgrecall/tgrecall/internal/retrieval"
)

const (
	recallExcerptLimit = 5   // Matched messages shown in the reply
	recallExcerptRunes = 200 // Per-message text cap in the excerpt
)

// NewRecallHandler returns a handler for the /recall command: a raw keyword
// search over the chat archive that reports what the engine found without
// the Gemini answer step.
func NewRecallHandler(deps HandlerDeps) bot.HandlerFunc {
	return recallHandler{deps}.Handle
}

type recallHandler struct {
	deps HandlerDeps
}

func (h recallHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "recall")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	keywords := parseKeywords(commandArgument(msg.Text))
	if len(keywords) == 0 {
		log.InfoContext(ctx, "Received /recall without keywords", "chat_id", chatID, "user_id", msg.From.ID)
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.RecallNoKeywordsMsg}); err != nil {
			log.ErrorContext(ctx, "Failed to send usage message", "error", err, "chat_id", chatID)
		}
		return
	}
	if limit := deps.Config.Retrieval.MaxKeywords; len(keywords) > limit {
		log.InfoContext(ctx, "Capping /recall keyword list", "chat_id", chatID, "given", len(keywords), "kept", limit)
		keywords = keywords[:limit]
	}

	log.InfoContext(ctx, "Handling /recall", "chat_id", chatID, "user_id", msg.From.ID, "keywords", keywords)

	end := time.Now().UTC()
	req := retrieval.Request{
		ChatID:        strconv.FormatInt(chatID, 10),
		Keywords:      keywords,
		Start:         end.AddDate(0, 0, -deps.Config.Retrieval.WindowDays),
		End:           end,
		ContextRadius: deps.Config.Retrieval.ContextRadius,
		ReplyDepth:    deps.Config.Retrieval.ReplyDepth,
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	result, err := deps.Engine.Retrieve(dbCtx, req)
	cancel()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		log.WarnContext(ctx, "Recall timed out", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Config.Messages.ErrorTimeoutMsg)
		return
	case err != nil:
		log.ErrorContext(ctx, "Recall failed", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, deps.Config.Messages.ErrorGeneralMsg)
		return
	}

	if len(result.Messages) == 0 {
		log.InfoContext(ctx, "No archived messages matched", "chat_id", chatID, "keywords", keywords)
		h.send(ctx, b, chatID, deps.Config.Messages.NoResultsMsg)
		return
	}

	h.send(ctx, b, chatID, formatRecallReply(result))
}

func (h recallHandler) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send recall reply", "error", err, "chat_id", chatID)
	}
}

// parseKeywords splits the /recall argument into search keywords. Commas
// separate multi-word phrases; without a comma each word is its own keyword.
// Keywords are lowercased and deduplicated preserving order.
func parseKeywords(arg string) []string {
	var parts []string
	if strings.Contains(arg, ",") {
		parts = strings.Split(arg, ",")
	} else {
		parts = strings.Fields(arg)
	}

	seen := make(map[string]struct{}, len(parts))
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		kw := strings.ToLower(strings.TrimSpace(p))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords
}

// formatRecallReply renders the summary line plus a short excerpt of the
// merged result. Keyword matches are marked with an asterisk like in the
// transcripts the bot sends to Gemini.
func formatRecallReply(result *retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(retrievalSummary(result.Stats))
	sb.WriteString("\n")

	shown := result.Messages
	if len(shown) > recallExcerptLimit {
		shown = shown[:recallExcerptLimit]
	}
	for i := range shown {
		m := &shown[i]
		marker := ""
		if m.Source == retrieval.SourceKeyword {
			marker = "*"
		}
		sb.WriteString("\n[")
		sb.WriteString(m.Timestamp.UTC().Format("2006-01-02 15:04"))
		sb.WriteString("]")
		sb.WriteString(marker)
		sb.WriteString(" ")
		sb.WriteString(m.Sender)
		sb.WriteString(": ")
		sb.WriteString(truncateText(m.Text, recallExcerptRunes))
	}
	if rest := len(result.Messages) - len(shown); rest > 0 {
		sb.WriteString("\n… and ")
		sb.WriteString(strconv.Itoa(rest))
		sb.WriteString(" more")
	}
	return sb.String()
}
