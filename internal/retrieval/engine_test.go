package retrieval_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tgrecall/tgrecall/internal/database"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
	"github.com/tgrecall/tgrecall/internal/retrieval"
)

const (
	rootText    = "вопрос про срок доставки"
	replyText   = "ответ: примерно две недели"
	chatterText = "просто болтовня в чате"
	secondText  = "опять про срок спрашивают"
	tailText    = "финальное сообщение без ключей"
)

// retrievalFixture holds the chat sequence m1..m5 where m1 and m4 contain
// "срок" and both m2 and m4 reply to m1.
func retrievalFixture() *fakeStore {
	return &fakeStore{messages: []database.Message{
		msg("C1", 1, 1, rootText),
		reply("C1", 2, 2, replyText, 1),
		msg("C1", 3, 3, chatterText),
		reply("C1", 4, 4, secondText, 1),
		msg("C1", 5, 5, tailText),
	}}
}

func fixtureRequest(keywords ...string) retrieval.Request {
	return retrieval.Request{
		ChatID:        "C1",
		Keywords:      keywords,
		Start:         testBase,
		End:           testBase.Add(time.Hour),
		ContextRadius: 1,
		ReplyDepth:    2,
	}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func retrievedIDs(msgs []retrieval.RetrievedMessage) []int64 {
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	return ids
}

func sourcesByID(msgs []retrieval.RetrievedMessage) map[int64]retrieval.Source {
	out := make(map[int64]retrieval.Source, len(msgs))
	for _, m := range msgs {
		out[m.MessageID] = m.Source
	}
	return out
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	engine := retrieval.NewEngine(retrievalFixture(), nil)
	result, err := engine.Retrieve(context.Background(), fixtureRequest("срок"))
	if err != nil {
		t.Fatalf("Retrieve() failed: %v", err)
	}

	t.Run("merges all strategies ordered by timestamp", func(t *testing.T) {
		t.Parallel()

		if want := []int64{1, 2, 3, 4, 5}; !slices.Equal(retrievedIDs(result.Messages), want) {
			t.Errorf("expected messages %v, got %v", want, retrievedIDs(result.Messages))
		}
		for i := 1; i < len(result.Messages); i++ {
			if result.Messages[i].Timestamp.Before(result.Messages[i-1].Timestamp) {
				t.Errorf("timestamps decrease at position %d", i)
			}
		}
	})

	t.Run("no two entries share a storage identity", func(t *testing.T) {
		t.Parallel()

		seen := make(map[retrieval.MessageKey]bool)
		for _, m := range result.Messages {
			key := retrieval.MessageKey{ChatID: m.ChatID, MessageID: m.MessageID}
			if seen[key] {
				t.Errorf("duplicate identity %v in result", key)
			}
			seen[key] = true
		}
	})

	t.Run("tags provenance by precedence", func(t *testing.T) {
		t.Parallel()

		want := map[int64]retrieval.Source{
			1: retrieval.SourceKeyword, // keyword beats answer
			2: retrieval.SourceContext, // context beats answer
			3: retrieval.SourceContext,
			4: retrieval.SourceKeyword, // keyword beats context and answer
			5: retrieval.SourceContext,
		}
		got := sourcesByID(result.Messages)
		for id, source := range want {
			if got[id] != source {
				t.Errorf("message %d: expected source %q, got %q", id, source, got[id])
			}
		}
	})

	t.Run("computes per-set statistics", func(t *testing.T) {
		t.Parallel()

		stats := result.Stats
		if stats.Keyword.Count != 2 {
			t.Errorf("expected 2 keyword matches, got %d", stats.Keyword.Count)
		}
		if want := runeLen(rootText) + runeLen(secondText); stats.Keyword.TotalLength != want {
			t.Errorf("expected keyword total length %d, got %d", want, stats.Keyword.TotalLength)
		}

		// Context holds the deduplicated neighbors {2, 3, 5}.
		if stats.Context.Count != 3 {
			t.Errorf("expected 3 context messages, got %d", stats.Context.Count)
		}
		if want := runeLen(replyText) + runeLen(chatterText) + runeLen(tailText); stats.Context.TotalLength != want {
			t.Errorf("expected context total length %d, got %d", want, stats.Context.TotalLength)
		}

		// Answer holds the chains rooted at each match: {1, 2, 4}.
		if stats.Answer.Count != 3 {
			t.Errorf("expected 3 answer-chain messages, got %d", stats.Answer.Count)
		}

		kw := stats.ByKeyword["срок"]
		if kw.Count != 2 {
			t.Errorf("expected keyword breakdown count 2, got %d", kw.Count)
		}
		if want := runeLen(rootText) + runeLen(secondText); kw.TotalLength != want {
			t.Errorf("expected keyword breakdown length %d, got %d", want, kw.TotalLength)
		}
	})
}

func TestRetrieveContextWindow(t *testing.T) {
	t.Parallel()

	t.Run("radius one around a middle match", func(t *testing.T) {
		t.Parallel()

		engine := retrieval.NewEngine(retrievalFixture(), nil)
		req := fixtureRequest("болтовня")
		req.ReplyDepth = 0

		result, err := engine.Retrieve(context.Background(), req)
		if err != nil {
			t.Fatalf("Retrieve() failed: %v", err)
		}

		if want := []int64{2, 3, 4}; !slices.Equal(retrievedIDs(result.Messages), want) {
			t.Errorf("expected window %v, got %v", want, retrievedIDs(result.Messages))
		}
		if result.Stats.Context.Count != 2 {
			t.Errorf("expected 2 context messages, got %d", result.Stats.Context.Count)
		}
	})

	t.Run("radius zero disables expansion", func(t *testing.T) {
		t.Parallel()

		engine := retrieval.NewEngine(retrievalFixture(), nil)
		req := fixtureRequest("болтовня")
		req.ContextRadius = 0
		req.ReplyDepth = 0

		result, err := engine.Retrieve(context.Background(), req)
		if err != nil {
			t.Fatalf("Retrieve() failed: %v", err)
		}

		if want := []int64{3}; !slices.Equal(retrievedIDs(result.Messages), want) {
			t.Errorf("expected only the match %v, got %v", want, retrievedIDs(result.Messages))
		}
		if result.Stats.Context.Count != 0 {
			t.Errorf("expected no context messages, got %d", result.Stats.Context.Count)
		}
	})

	t.Run("window may leak outside the date range", func(t *testing.T) {
		t.Parallel()

		engine := retrieval.NewEngine(retrievalFixture(), nil)
		req := fixtureRequest("болтовня")
		req.ReplyDepth = 0
		// The range ends at the match itself; its later neighbor lies
		// outside but is still pulled in as context.
		req.End = testBase.Add(3 * time.Minute)

		result, err := engine.Retrieve(context.Background(), req)
		if err != nil {
			t.Fatalf("Retrieve() failed: %v", err)
		}

		got := sourcesByID(result.Messages)
		if got[4] != retrieval.SourceContext {
			t.Errorf("expected out-of-range neighbor 4 as context, got %q", got[4])
		}
	})
}

func TestRetrieveOverlappingKeywordStats(t *testing.T) {
	t.Parallel()

	engine := retrieval.NewEngine(retrievalFixture(), nil)
	result, err := engine.Retrieve(context.Background(), fixtureRequest("срок", "доставк"))
	if err != nil {
		t.Fatalf("Retrieve() failed: %v", err)
	}
	stats := result.Stats

	// m1 contains both keywords; the aggregate counts it once, the
	// per-keyword breakdown counts it under each.
	if stats.Keyword.Count != 2 {
		t.Fatalf("expected aggregate count 2, got %d", stats.Keyword.Count)
	}
	if got := stats.ByKeyword["срок"].Count; got != 2 {
		t.Errorf("expected 'срок' breakdown count 2, got %d", got)
	}
	if got := stats.ByKeyword["доставк"].Count; got != 1 {
		t.Errorf("expected 'доставк' breakdown count 1, got %d", got)
	}

	sumCounts := 0
	sumLengths := 0
	for _, s := range stats.ByKeyword {
		sumCounts += s.Count
		sumLengths += s.TotalLength
	}
	if sumCounts <= stats.Keyword.Count {
		t.Errorf("expected per-keyword counts (%d) to exceed the aggregate (%d) on overlap", sumCounts, stats.Keyword.Count)
	}
	if sumLengths <= stats.Keyword.TotalLength {
		t.Errorf("expected per-keyword lengths (%d) to exceed the aggregate (%d) on overlap", sumLengths, stats.Keyword.TotalLength)
	}
}

func TestRetrieveNoMatches(t *testing.T) {
	t.Parallel()

	t.Run("keywords match nothing", func(t *testing.T) {
		t.Parallel()

		engine := retrieval.NewEngine(retrievalFixture(), nil)
		result, err := engine.Retrieve(context.Background(), fixtureRequest("пицца"))
		if err != nil {
			t.Fatalf("Retrieve() failed: %v", err)
		}
		if len(result.Messages) != 0 {
			t.Errorf("expected empty result, got %v", retrievedIDs(result.Messages))
		}
		if result.Stats.Keyword.Count != 0 || result.Stats.Context.Count != 0 || result.Stats.Answer.Count != 0 {
			t.Errorf("expected zero stats, got %+v", result.Stats)
		}
		if _, ok := result.Stats.ByKeyword["пицца"]; !ok {
			t.Error("expected the keyword breakdown to carry a zero entry for the requested keyword")
		}
	})

	t.Run("chat has no messages at all", func(t *testing.T) {
		t.Parallel()

		engine := retrieval.NewEngine(&fakeStore{}, nil)
		result, err := engine.Retrieve(context.Background(), fixtureRequest("срок"))
		if err != nil {
			t.Fatalf("Retrieve() on empty store failed: %v", err)
		}
		if len(result.Messages) != 0 {
			t.Errorf("expected empty result, got %v", retrievedIDs(result.Messages))
		}
	})
}

func TestRetrieveValidation(t *testing.T) {
	t.Parallel()

	mutations := map[string]func(*retrieval.Request){
		"missing chat id":      func(r *retrieval.Request) { r.ChatID = "" },
		"empty keyword list":   func(r *retrieval.Request) { r.Keywords = nil },
		"empty keyword string": func(r *retrieval.Request) { r.Keywords = []string{"срок", ""} },
		"inverted date range":  func(r *retrieval.Request) { r.Start, r.End = r.End, r.Start },
		"negative radius":      func(r *retrieval.Request) { r.ContextRadius = -1 },
		"negative reply depth": func(r *retrieval.Request) { r.ReplyDepth = -1 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := retrievalFixture()
			engine := retrieval.NewEngine(store, nil)

			req := fixtureRequest("срок")
			mutate(&req)

			_, err := engine.Retrieve(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if code := apperrors.Code(err); code != apperrors.CodeInvalidRequest {
				t.Errorf("expected code %s, got %s", apperrors.CodeInvalidRequest, code)
			}
			if n := store.keywordQueryCount(); n != 0 {
				t.Errorf("expected rejection before store access, got %d queries", n)
			}
		})
	}
}

func TestRetrieveStoreFailures(t *testing.T) {
	t.Parallel()

	queryErr := errors.New("disk detached")

	cases := map[string]func(*fakeStore){
		"keyword search fails":  func(f *fakeStore) { f.keywordErr = queryErr },
		"context lookup fails":  func(f *fakeStore) { f.adjacentErr = queryErr },
		"reply traversal fails": func(f *fakeStore) { f.repliesErr = queryErr },
	}

	for name, arm := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := retrievalFixture()
			arm(store)
			engine := retrieval.NewEngine(store, nil)

			_, err := engine.Retrieve(context.Background(), fixtureRequest("срок"))
			if err == nil {
				t.Fatal("expected store failure to surface, got nil")
			}
			if code := apperrors.Code(err); code != apperrors.CodeStoreUnavailable {
				t.Errorf("expected code %s, got %s", apperrors.CodeStoreUnavailable, code)
			}
			if !errors.Is(err, queryErr) {
				t.Error("expected the underlying store error to stay reachable")
			}
		})
	}
}
