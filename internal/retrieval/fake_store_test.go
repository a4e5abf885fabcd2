// Package retrieval_test exercises the retrieval engine against an in-memory
// store that mirrors the real Store query contracts.
package retrieval_test

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tgrecall/tgrecall/internal/database"
)

var testBase = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(chatID string, messageID int64, minute int, text string) database.Message {
	return database.Message{
		ID:        messageID,
		ChatID:    chatID,
		MessageID: messageID,
		Timestamp: testBase.Add(time.Duration(minute) * time.Minute),
		Text:      text,
		Sender:    "alice",
		ChatTitle: "Test Chat",
	}
}

func reply(chatID string, messageID int64, minute int, text string, parentID int64) database.Message {
	m := msg(chatID, messageID, minute, text)
	m.ReplyToMessageID = sql.NullInt64{Int64: parentID, Valid: true}
	return m
}

// fakeStore serves the retrieval.Store interface from a fixed message slice.
// Error fields make individual queries fail; keywordErrAfter delays the
// keyword failure until that many queries have succeeded.
type fakeStore struct {
	messages []database.Message

	keywordErr      error
	keywordErrAfter int
	adjacentErr     error
	repliesErr      error

	mu             sync.Mutex
	keywordQueries int
	repliesQueries int
}

func (f *fakeStore) FindMessagesByKeywords(_ context.Context, chatID string, start, end time.Time, keywords []string) ([]database.Message, error) {
	f.mu.Lock()
	f.keywordQueries++
	calls := f.keywordQueries
	f.mu.Unlock()

	if f.keywordErr != nil && calls > f.keywordErrAfter {
		return nil, f.keywordErr
	}

	var out []database.Message
	for _, m := range f.messages {
		if m.ChatID != chatID || m.Timestamp.Before(start) || m.Timestamp.After(end) {
			continue
		}
		text := strings.ToLower(m.Text)
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				out = append(out, m)
				break
			}
		}
	}
	sortByTime(out)
	return out, nil
}

func (f *fakeStore) FindAdjacentMessages(_ context.Context, chatID string, messageID int64, direction database.AdjacentDirection, limit int) ([]database.Message, error) {
	if f.adjacentErr != nil {
		return nil, f.adjacentErr
	}
	if limit <= 0 {
		return nil, nil
	}

	var side []database.Message
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		if direction == database.DirectionBefore && m.MessageID < messageID {
			side = append(side, m)
		}
		if direction == database.DirectionAfter && m.MessageID > messageID {
			side = append(side, m)
		}
	}
	sort.Slice(side, func(i, j int) bool {
		if direction == database.DirectionBefore {
			return side[i].MessageID > side[j].MessageID
		}
		return side[i].MessageID < side[j].MessageID
	})
	if len(side) > limit {
		side = side[:limit]
	}
	return side, nil
}

func (f *fakeStore) FindReplies(_ context.Context, chatID string, parentMessageID int64) ([]database.Message, error) {
	f.mu.Lock()
	f.repliesQueries++
	f.mu.Unlock()

	if f.repliesErr != nil {
		return nil, f.repliesErr
	}

	var out []database.Message
	for _, m := range f.messages {
		if m.ChatID == chatID && m.ReplyToMessageID.Valid && m.ReplyToMessageID.Int64 == parentMessageID {
			out = append(out, m)
		}
	}
	sortByTime(out)
	return out, nil
}

func (f *fakeStore) repliesQueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repliesQueries
}

func (f *fakeStore) keywordQueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keywordQueries
}

func sortByTime(msgs []database.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].MessageID < msgs[j].MessageID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func chainIDs(msgs []database.Message) []int64 {
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	return ids
}
