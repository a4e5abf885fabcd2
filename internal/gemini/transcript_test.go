package gemini_test

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/tgrecall/tgrecall/internal/database"
	"github.com/tgrecall/tgrecall/internal/gemini"
	"github.com/tgrecall/tgrecall/internal/retrieval"
)

var transcriptBase = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func entry(messageID int64, minute int, sender, text string, source retrieval.Source) retrieval.RetrievedMessage {
	return retrieval.RetrievedMessage{
		Message: database.Message{
			ChatID:    "C1",
			MessageID: messageID,
			Timestamp: transcriptBase.Add(time.Duration(minute) * time.Minute),
			Sender:    sender,
			Text:      text,
		},
		Source: source,
	}
}

func replyEntry(messageID int64, minute int, sender, text string, parentID int64, source retrieval.Source) retrieval.RetrievedMessage {
	m := entry(messageID, minute, sender, text, source)
	m.ReplyToMessageID = sql.NullInt64{Int64: parentID, Valid: true}
	return m
}

func TestBuildTranscript(t *testing.T) {
	t.Parallel()

	t.Run("indents reply threads and marks keyword matches", func(t *testing.T) {
		t.Parallel()

		messages := []retrieval.RetrievedMessage{
			entry(1, 0, "alice", "вопрос про срок доставки", retrieval.SourceKeyword),
			replyEntry(2, 1, "bob", "примерно две недели", 1, retrieval.SourceAnswer),
			replyEntry(3, 2, "alice", "спасибо!", 2, retrieval.SourceAnswer),
			entry(4, 3, "carol", "другая тема", retrieval.SourceContext),
		}

		want := strings.Join([]string{
			"[2024-05-01 10:00:00]* alice:",
			"вопрос про срок доставки",
			"  [2024-05-01 10:01:00] bob:",
			"  примерно две недели",
			"    [2024-05-01 10:02:00] alice:",
			"    спасибо!",
			"[2024-05-01 10:03:00] carol:",
			"другая тема",
		}, "\n")

		if got := gemini.BuildTranscript(messages); got != want {
			t.Errorf("transcript mismatch\ngot:\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("reply without its parent still indents one level", func(t *testing.T) {
		t.Parallel()

		messages := []retrieval.RetrievedMessage{
			replyEntry(7, 0, "dave", "ответ без родителя", 99, retrieval.SourceContext),
		}

		want := "  [2024-05-01 10:00:00] dave:\n  ответ без родителя"
		if got := gemini.BuildTranscript(messages); got != want {
			t.Errorf("transcript mismatch\ngot:\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("empty selection renders nothing", func(t *testing.T) {
		t.Parallel()

		if got := gemini.BuildTranscript(nil); got != "" {
			t.Errorf("expected empty transcript, got %q", got)
		}
	})
}

func TestFormatMessages(t *testing.T) {
	t.Parallel()

	messages := []database.Message{
		entry(1, 0, "alice", "привет", retrieval.SourceContext).Message,
		entry(2, 5, "bob", "пока", retrieval.SourceContext).Message,
	}

	want := "[2024-05-01 10:00:00] alice: привет\n[2024-05-01 10:05:00] bob: пока"
	if got := gemini.FormatMessages(messages); got != want {
		t.Errorf("formatted messages mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}
