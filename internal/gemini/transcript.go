package gemini

import (
	"fmt"
	"strings"

	"github.com/tgrecall/tgrecall/internal/database"
	"github.com/tgrecall/tgrecall/internal/retrieval"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// BuildTranscript renders retrieved messages as a reply-threaded transcript
// for the answer prompt. Each message takes two lines:
//
//	[2024-05-01 10:03:00]* sender:
//	text
//
// Replies are indented two spaces per nesting level under their parent; a
// reply whose parent is not part of the selection is indented one level.
// The * marks messages that matched the search keywords directly. The input
// is expected in timestamp order, which the retrieval engine guarantees.
func BuildTranscript(messages []retrieval.RetrievedMessage) string {
	if len(messages) == 0 {
		return ""
	}

	levels := make(map[int64]int, len(messages))
	var sb strings.Builder

	for i, m := range messages {
		level := 0
		if m.IsReply() {
			level = levels[m.ReplyToMessageID.Int64] + 1
		}
		levels[m.MessageID] = level

		indent := strings.Repeat("  ", level)
		marker := ""
		if m.Source == retrieval.SourceKeyword {
			marker = "*"
		}

		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s[%s]%s %s:\n%s%s",
			indent, m.Timestamp.UTC().Format(transcriptTimeLayout), marker, m.Sender, indent, m.Text)
	}

	return sb.String()
}

// FormatMessages renders archived messages as single lines for the digest
// prompt.
func FormatMessages(messages []database.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("[%s] %s: %s", m.Timestamp.UTC().Format(transcriptTimeLayout), m.Sender, m.Text)
	}
	return strings.Join(lines, "\n")
}
