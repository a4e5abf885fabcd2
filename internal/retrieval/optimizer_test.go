package retrieval_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tgrecall/tgrecall/internal/database"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
	"github.com/tgrecall/tgrecall/internal/retrieval"
)

// optimizerStore returns messages with fixed rune lengths so budget
// arithmetic stays readable: "alpha" matches 10 runes, "beta" 8, "gamma" 6.
func optimizerStore() *fakeStore {
	return &fakeStore{messages: []database.Message{
		msg("C1", 1, 1, "alpha 0123"),
		msg("C1", 2, 2, "beta 012"),
		msg("C1", 3, 3, "gamma0"),
	}}
}

func cachedStats(total int, perKeyword map[string]int) *retrieval.Stats {
	stats := &retrieval.Stats{
		Keyword:   retrieval.SetStats{Count: len(perKeyword), TotalLength: total},
		ByKeyword: make(map[string]retrieval.SetStats, len(perKeyword)),
	}
	for keyword, length := range perKeyword {
		stats.ByKeyword[keyword] = retrieval.SetStats{Count: 1, TotalLength: length}
	}
	return stats
}

func TestOptimizeKeywords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		keywords    []string
		budget      int
		want        []string
		wantQueries int
	}{
		{
			name:        "all keywords fit",
			keywords:    []string{"alpha", "beta", "gamma"},
			budget:      24,
			want:        []string{"alpha", "beta", "gamma"},
			wantQueries: 1,
		},
		{
			name:        "drops the tail until the total fits",
			keywords:    []string{"alpha", "beta", "gamma"},
			budget:      18,
			want:        []string{"alpha", "beta"},
			wantQueries: 2,
		},
		{
			name:        "keeps one keyword even over budget",
			keywords:    []string{"alpha", "beta", "gamma"},
			budget:      5,
			want:        []string{"alpha"},
			wantQueries: 2,
		},
		{
			name:        "single keyword skips the store",
			keywords:    []string{"alpha"},
			budget:      0,
			want:        []string{"alpha"},
			wantQueries: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := optimizerStore()
			engine := retrieval.NewEngine(store, nil)

			got, err := engine.OptimizeKeywords(context.Background(), fixtureRequest(tc.keywords...), tc.budget)
			if err != nil {
				t.Fatalf("OptimizeKeywords() failed: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("expected keywords %v, got %v", tc.want, got)
			}
			if n := store.keywordQueryCount(); n != tc.wantQueries {
				t.Errorf("expected %d keyword queries, got %d", tc.wantQueries, n)
			}
		})
	}
}

func TestOptimizeKeywordsValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		req    retrieval.Request
		budget int
	}{
		"invalid request": {
			req:    retrieval.Request{ChatID: "C1"},
			budget: 100,
		},
		"negative budget": {
			req:    fixtureRequest("alpha"),
			budget: -1,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := optimizerStore()
			engine := retrieval.NewEngine(store, nil)

			_, err := engine.OptimizeKeywords(context.Background(), tc.req, tc.budget)
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

func TestOptimizeKeywordsStoreFailure(t *testing.T) {
	t.Parallel()

	queryErr := errors.New("disk detached")
	store := optimizerStore()
	store.keywordErr = queryErr
	store.keywordErrAfter = 1 // first probe succeeds, the re-query fails
	engine := retrieval.NewEngine(store, nil)

	got, err := engine.OptimizeKeywords(context.Background(), fixtureRequest("alpha", "beta", "gamma"), 5)
	if err == nil {
		t.Fatal("expected store failure to surface, got nil")
	}
	if code := apperrors.Code(err); code != apperrors.CodeStoreUnavailable {
		t.Errorf("expected code %s, got %s", apperrors.CodeStoreUnavailable, code)
	}
	if !errors.Is(err, queryErr) {
		t.Error("expected the underlying store error to stay reachable")
	}
	if got != nil {
		t.Errorf("expected no partial keyword list on failure, got %v", got)
	}
}

func TestOptimizeKeywordsCached(t *testing.T) {
	t.Parallel()

	lengths := map[string]int{"дедлайн": 4000, "срок": 3000, "проект": 3000}

	cases := []struct {
		name     string
		keywords []string
		total    int
		budget   int
		want     []string
	}{
		{
			name:     "over budget drops the tail",
			keywords: []string{"дедлайн", "срок", "проект"},
			total:    9000,
			budget:   7000,
			want:     []string{"дедлайн", "срок"},
		},
		{
			name:     "within budget keeps all keywords",
			keywords: []string{"дедлайн", "срок", "проект"},
			total:    9000,
			budget:   9000,
			want:     []string{"дедлайн", "срок", "проект"},
		},
		{
			name:     "budget zero falls to a single keyword",
			keywords: []string{"дедлайн", "срок", "проект"},
			total:    9000,
			budget:   0,
			want:     []string{"дедлайн"},
		},
		{
			name:     "single keyword is never dropped",
			keywords: []string{"дедлайн"},
			total:    4000,
			budget:   0,
			want:     []string{"дедлайн"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := retrieval.OptimizeKeywordsCached(tc.keywords, tc.budget, cachedStats(tc.total, lengths))
			if err != nil {
				t.Fatalf("OptimizeKeywordsCached() failed: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("expected keywords %v, got %v", tc.want, got)
			}
		})
	}

	t.Run("does not mutate the input list", func(t *testing.T) {
		t.Parallel()

		keywords := []string{"дедлайн", "срок", "проект"}
		if _, err := retrieval.OptimizeKeywordsCached(keywords, 0, cachedStats(10000, lengths)); err != nil {
			t.Fatalf("OptimizeKeywordsCached() failed: %v", err)
		}
		if want := []string{"дедлайн", "срок", "проект"}; !slices.Equal(keywords, want) {
			t.Errorf("input list changed to %v", keywords)
		}
	})

	t.Run("missing breakdown entry subtracts nothing", func(t *testing.T) {
		t.Parallel()

		stats := cachedStats(100, map[string]int{"дедлайн": 100})
		got, err := retrieval.OptimizeKeywordsCached([]string{"дедлайн", "срок"}, 50, stats)
		if err != nil {
			t.Fatalf("OptimizeKeywordsCached() failed: %v", err)
		}
		if want := []string{"дедлайн"}; !slices.Equal(got, want) {
			t.Errorf("expected keywords %v, got %v", want, got)
		}
	})
}

func TestOptimizeKeywordsCachedValidation(t *testing.T) {
	t.Parallel()

	stats := cachedStats(100, map[string]int{"дедлайн": 100})

	cases := map[string]func() ([]string, error){
		"empty keyword list": func() ([]string, error) {
			return retrieval.OptimizeKeywordsCached(nil, 100, stats)
		},
		"negative budget": func() ([]string, error) {
			return retrieval.OptimizeKeywordsCached([]string{"дедлайн"}, -1, stats)
		},
		"missing statistics": func() ([]string, error) {
			return retrieval.OptimizeKeywordsCached([]string{"дедлайн"}, 100, nil)
		},
	}

	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := call()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if code := apperrors.Code(err); code != apperrors.CodeInvalidRequest {
				t.Errorf("expected code %s, got %s", apperrors.CodeInvalidRequest, code)
			}
		})
	}
}

// The cached mode subtracts a dropped keyword's full per-keyword total even
// when some of its messages also match a surviving keyword, so its running
// estimate shrinks faster than the real total and it can stop dropping
// early. The exact mode re-queries and keeps dropping.
func TestOptimizeModesDivergeOnOverlap(t *testing.T) {
	t.Parallel()

	store := &fakeStore{messages: []database.Message{
		msg("C1", 1, 1, "alpha gamma 1"), // 13 runes, matches two keywords
		msg("C1", 2, 2, "beta 5"),        // 6 runes
		msg("C1", 3, 3, "gamma"),         // 5 runes
	}}
	engine := retrieval.NewEngine(store, nil)

	req := fixtureRequest("alpha", "beta", "gamma")
	req.ContextRadius = 0
	req.ReplyDepth = 0

	result, err := engine.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve() failed: %v", err)
	}

	// Real totals: all three keywords match 24 runes, ["alpha","beta"]
	// matches 19, ["alpha"] matches 13. The cached estimate for
	// ["alpha","beta"] is 24-18=6 because "gamma" is charged for the
	// shared first message.
	cached, err := retrieval.OptimizeKeywordsCached(req.Keywords, 12, &result.Stats)
	if err != nil {
		t.Fatalf("OptimizeKeywordsCached() failed: %v", err)
	}
	if want := []string{"alpha", "beta"}; !slices.Equal(cached, want) {
		t.Errorf("expected cached mode to keep %v, got %v", want, cached)
	}

	exact, err := engine.OptimizeKeywords(context.Background(), req, 12)
	if err != nil {
		t.Fatalf("OptimizeKeywords() failed: %v", err)
	}
	if want := []string{"alpha"}; !slices.Equal(exact, want) {
		t.Errorf("expected exact mode to keep %v, got %v", want, exact)
	}
}
