package retrieval

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/tgrecall/tgrecall/internal/database"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// defaultFanout caps how many store queries the aggregator runs concurrently
// while expanding keyword matches.
const defaultFanout = 4

// Engine runs retrievals against an injected archive store.
type Engine struct {
	store  Store
	logger *slog.Logger
	fanout int
}

// NewEngine creates a retrieval engine over the given store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:  store,
		logger: logger.With("component", "retrieval"),
		fanout: defaultFanout,
	}
}

// Retrieve runs the full retrieval for one request: keyword matching, context
// expansion and reply-chain walking per match, then merge, dedup, provenance
// tagging and statistics. A chat with no matches yields an empty result and
// zero stats, not an error.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	log := e.logger.With("chat_id", req.ChatID)
	log.DebugContext(ctx, "Starting retrieval",
		"keywords", len(req.Keywords), "context_radius", req.ContextRadius, "reply_depth", req.ReplyDepth)

	keywordMsgs, err := e.store.FindMessagesByKeywords(ctx, req.ChatID, req.Start, req.End, req.Keywords)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("keyword search failed", err)
	}

	if len(keywordMsgs) == 0 {
		log.DebugContext(ctx, "No keyword matches in range")
		return &Result{Stats: newStats(req)}, nil
	}

	// Expansion queries for different matches are independent; the final
	// sort restores determinism regardless of completion order.
	contextParts := make([][]database.Message, len(keywordMsgs))
	answerParts := make([][]database.Message, len(keywordMsgs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)

	for i, m := range keywordMsgs {
		g.Go(func() error {
			if req.ContextRadius > 0 {
				window, err := e.contextWindow(gCtx, req.ChatID, m.MessageID, req.ContextRadius)
				if err != nil {
					return err
				}
				contextParts[i] = window
			}

			chain, err := e.Walk(gCtx, m, req.ReplyDepth, nil)
			if err != nil {
				return err
			}
			answerParts[i] = chain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keywordSet := make(map[MessageKey]database.Message, len(keywordMsgs))
	for _, m := range keywordMsgs {
		keywordSet[keyOf(m)] = m
	}
	contextSet := collect(contextParts)
	answerSet := collect(answerParts)

	merged := make(map[MessageKey]RetrievedMessage, len(keywordSet)+len(contextSet)+len(answerSet))
	for k, m := range keywordSet {
		merged[k] = RetrievedMessage{Message: m, Source: SourceKeyword}
	}
	for k, m := range contextSet {
		if _, taken := merged[k]; !taken {
			merged[k] = RetrievedMessage{Message: m, Source: SourceContext}
		}
	}
	for k, m := range answerSet {
		if _, taken := merged[k]; !taken {
			merged[k] = RetrievedMessage{Message: m, Source: SourceAnswer}
		}
	}

	messages := make([]RetrievedMessage, 0, len(merged))
	for _, rm := range merged {
		messages = append(messages, rm)
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].MessageID < messages[j].MessageID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	stats := newStats(req)
	stats.Keyword = setStatsOf(keywordSet)
	stats.Context = setStatsOf(contextSet)
	stats.Answer = setStatsOf(answerSet)
	fillByKeyword(&stats, req.Keywords, keywordSet)

	log.InfoContext(ctx, "Retrieval complete",
		"keyword_matches", stats.Keyword.Count,
		"context_messages", stats.Context.Count,
		"answer_messages", stats.Answer.Count,
		"total", len(messages))

	return &Result{Messages: messages, Stats: stats}, nil
}

// contextWindow fetches up to radius messages on each side of messageID in
// the chat-local sequence. The window deliberately ignores the request's
// date range: once a match seeds it, neighbors outside the range still count
// as context.
func (e *Engine) contextWindow(ctx context.Context, chatID string, messageID int64, radius int) ([]database.Message, error) {
	before, err := e.store.FindAdjacentMessages(ctx, chatID, messageID, database.DirectionBefore, radius)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("context window lookup failed", err)
	}
	after, err := e.store.FindAdjacentMessages(ctx, chatID, messageID, database.DirectionAfter, radius)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("context window lookup failed", err)
	}
	return append(before, after...), nil
}

func collect(parts [][]database.Message) map[MessageKey]database.Message {
	set := make(map[MessageKey]database.Message)
	for _, part := range parts {
		for _, m := range part {
			set[keyOf(m)] = m
		}
	}
	return set
}

func setStatsOf(set map[MessageKey]database.Message) SetStats {
	var s SetStats
	for _, m := range set {
		s.Count++
		s.TotalLength += utf8.RuneCountInString(m.Text)
	}
	return s
}

// fillByKeyword counts every keyword-set message under every keyword it
// contains; a message matching several keywords is counted once per keyword.
func fillByKeyword(stats *Stats, keywords []string, keywordSet map[MessageKey]database.Message) {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	for _, m := range keywordSet {
		text := strings.ToLower(m.Text)
		length := utf8.RuneCountInString(m.Text)
		for i, kw := range keywords {
			if strings.Contains(text, lowered[i]) {
				s := stats.ByKeyword[kw]
				s.Count++
				s.TotalLength += length
				stats.ByKeyword[kw] = s
			}
		}
	}
}
