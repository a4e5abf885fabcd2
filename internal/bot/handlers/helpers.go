package handlers

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tgrecall/tgrecall/internal/retrieval"
)

// commandArgument returns the text following the command itself, with
// surrounding whitespace removed: "/ask@archivist когда дедлайн?" yields
// "когда дедлайн?".
func commandArgument(text string) string {
	text = strings.TrimSpace(text)
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}

// retrievalSummary renders the one-line source breakdown appended to replies.
// Counts are per strategy before merging, so they may add up to more than the
// number of messages shown.
func retrievalSummary(stats retrieval.Stats) string {
	return fmt.Sprintf("📊 %d keyword matches · %d context · %d reply chain (keywords: %s)",
		stats.Keyword.Count, stats.Context.Count, stats.Answer.Count,
		strings.Join(stats.Request.Keywords, ", "))
}

// truncateText caps s at maxRunes, appending an ellipsis when cut. Cutting on
// runes keeps Cyrillic text intact.
func truncateText(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "…"
}
