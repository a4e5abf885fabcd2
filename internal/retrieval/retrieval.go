// Package retrieval implements the message retrieval engine: keyword search
// over the archive, positional context-window expansion, reply-chain
// traversal, aggregation with provenance tagging, and a character-budget
// keyword optimizer. The engine only reads; persistence belongs to the
// injected store.
package retrieval

import (
	"context"
	"time"

	"github.com/tgrecall/tgrecall/internal/database"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// Store is the read-only slice of the archive the engine consumes.
// database.Store satisfies it.
type Store interface {
	FindMessagesByKeywords(ctx context.Context, chatID string, start, end time.Time, keywords []string) ([]database.Message, error)
	FindAdjacentMessages(ctx context.Context, chatID string, messageID int64, direction database.AdjacentDirection, limit int) ([]database.Message, error)
	FindReplies(ctx context.Context, chatID string, parentMessageID int64) ([]database.Message, error)
}

// MessageKey is the storage identity of a message. Deduplication and cycle
// guarding key on it, never on content equality: two distinct messages with
// identical text are distinct records.
type MessageKey struct {
	ChatID    string
	MessageID int64
}

func keyOf(m database.Message) MessageKey {
	return MessageKey{ChatID: m.ChatID, MessageID: m.MessageID}
}

// VisitSet tracks messages already entered by reply-chain traversal. Passing
// the same set to several walks suppresses re-entry across them; nil gives
// each walk a fresh set.
type VisitSet map[MessageKey]struct{}

// Source records which retrieval strategy is credited for including a
// message in a result.
type Source string

const (
	// SourceKeyword marks a direct keyword match.
	SourceKeyword Source = "keyword"
	// SourceContext marks a chat-local neighbor of a keyword match.
	SourceContext Source = "context"
	// SourceAnswer marks a member of a reply chain rooted at a keyword match.
	SourceAnswer Source = "answer"
)

// Request describes one retrieval run.
type Request struct {
	ChatID string

	// Keywords is ordered by caller-assigned relevance, most relevant first.
	// The order matters to the optimizer, which only ever drops from the end.
	Keywords []string

	// Start and End bound keyword matches by timestamp, inclusive on both
	// ends. Context windows and reply chains are seeded by matches inside
	// the range but may themselves reach outside it.
	Start time.Time
	End   time.Time

	// ContextRadius is how many chat-local neighbors to pull on each side
	// of every keyword match. Zero disables context expansion.
	ContextRadius int

	// ReplyDepth bounds reply-chain traversal from each keyword match.
	// Zero keeps only the match itself.
	ReplyDepth int
}

func (r Request) validate() error {
	if r.ChatID == "" {
		return apperrors.NewInvalidRequest("chat id is required")
	}
	if len(r.Keywords) == 0 {
		return apperrors.NewInvalidRequest("keyword list is empty")
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			return apperrors.NewInvalidRequest("keywords cannot be empty strings")
		}
	}
	if r.Start.After(r.End) {
		return apperrors.NewInvalidRequest("date range is inverted: start is after end")
	}
	if r.ContextRadius < 0 {
		return apperrors.NewInvalidRequest("context radius cannot be negative")
	}
	if r.ReplyDepth < 0 {
		return apperrors.NewInvalidRequest("reply depth limit cannot be negative")
	}
	return nil
}

// RetrievedMessage is an archived message plus the provenance of its
// inclusion. A message reachable through several strategies is tagged
// exactly once, with precedence keyword > context > answer.
type RetrievedMessage struct {
	database.Message
	Source Source
}

// SetStats describes one strategy's contribution: how many messages it
// produced and their total text length in runes.
type SetStats struct {
	Count       int
	TotalLength int
}

// Stats summarizes a retrieval run. Each strategy's set is deduplicated
// internally, but the three sets may overlap each other, so their counts can
// exceed the length of the merged result. In ByKeyword a message is counted
// under every keyword whose substring it contains, so per-keyword totals may
// in turn exceed the keyword aggregate.
type Stats struct {
	Request Request

	Keyword   SetStats
	ByKeyword map[string]SetStats
	Context   SetStats
	Answer    SetStats
}

func newStats(req Request) Stats {
	byKeyword := make(map[string]SetStats, len(req.Keywords))
	for _, kw := range req.Keywords {
		byKeyword[kw] = SetStats{}
	}
	return Stats{Request: req, ByKeyword: byKeyword}
}

// Result is one retrieval outcome: the merged messages ordered by timestamp
// (ties broken by message_id) and the statistics for each strategy.
type Result struct {
	Messages []RetrievedMessage
	Stats    Stats
}
