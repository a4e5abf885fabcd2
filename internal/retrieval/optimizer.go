package retrieval

import (
	"context"
	"slices"
	"unicode/utf8"

	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// OptimizeKeywords trims the request's relevance-ordered keyword list to a
// prefix whose matched messages total at most budget runes of text. The least
// relevant keyword is dropped and the keyword search re-run until the total
// fits; at least one keyword is always kept, even when still over budget.
//
// This is the exact mode: every candidate list is verified against the store,
// at the cost of one query per dropped keyword. Store failures propagate
// immediately rather than returning an unverified best-so-far list.
func (e *Engine) OptimizeKeywords(ctx context.Context, req Request, budget int) ([]string, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if budget < 0 {
		return nil, apperrors.NewInvalidRequest("character budget cannot be negative")
	}

	optimized := slices.Clone(req.Keywords)
	for len(optimized) > 1 {
		matches, err := e.store.FindMessagesByKeywords(ctx, req.ChatID, req.Start, req.End, optimized)
		if err != nil {
			return nil, apperrors.NewStoreUnavailable("keyword search failed during optimization", err)
		}

		total := 0
		for _, m := range matches {
			total += utf8.RuneCountInString(m.Text)
		}
		if total <= budget {
			break
		}

		e.logger.DebugContext(ctx, "Dropping least relevant keyword",
			"keyword", optimized[len(optimized)-1], "total_length", total, "budget", budget)
		optimized = optimized[:len(optimized)-1]
	}

	return optimized, nil
}

// OptimizeKeywordsCached trims the keyword list against budget using the
// per-keyword totals of a previously computed Stats (from a retrieval over
// the same, unreduced list) instead of re-querying the store.
//
// Known approximation: dropping a keyword subtracts its full per-keyword
// total, including messages that still match a surviving keyword, so the
// running total understates the true remaining volume and the returned
// prefix may still exceed the budget. OptimizeKeywords is the exact
// alternative.
func OptimizeKeywordsCached(keywords []string, budget int, stats *Stats) ([]string, error) {
	if len(keywords) == 0 {
		return nil, apperrors.NewInvalidRequest("keyword list is empty")
	}
	if budget < 0 {
		return nil, apperrors.NewInvalidRequest("character budget cannot be negative")
	}
	if stats == nil {
		return nil, apperrors.NewInvalidRequest("cached statistics are required")
	}

	optimized := slices.Clone(keywords)
	total := stats.Keyword.TotalLength
	for total > budget && len(optimized) > 1 {
		dropped := optimized[len(optimized)-1]
		optimized = optimized[:len(optimized)-1]
		total -= stats.ByKeyword[dropped].TotalLength
	}

	return optimized, nil
}
