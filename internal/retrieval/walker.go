package retrieval

import (
	"context"

	"github.com/tgrecall/tgrecall/internal/database"
	apperrors "github.com/tgrecall/tgrecall/internal/errors"
)

// Walk returns root plus every message transitively replying to it, walking
// parent to children depth-first with children in timestamp order. Traversal
// stops descending once a message sits at depth depthLimit, so depthLimit 0
// returns only the root.
//
// The visit set is the cycle guard: a message already in it is never entered
// again, which keeps traversal finite even over corrupted reply graphs that
// contain cycles. Passing nil starts a fresh set for this walk (the
// aggregator's default); passing a shared set suppresses re-entry across
// several walks, including the root itself when a previous walk reached it.
func (e *Engine) Walk(ctx context.Context, root database.Message, depthLimit int, visited VisitSet) ([]database.Message, error) {
	if depthLimit < 0 {
		return nil, apperrors.NewInvalidRequest("reply depth limit cannot be negative")
	}
	if visited == nil {
		visited = make(VisitSet)
	}

	rootKey := keyOf(root)
	if _, seen := visited[rootKey]; seen {
		return nil, nil
	}
	visited[rootKey] = struct{}{}

	type frame struct {
		msg   database.Message
		depth int
	}

	stack := []frame{{msg: root}}
	var chain []database.Message

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		chain = append(chain, f.msg)

		if f.depth >= depthLimit {
			continue
		}

		children, err := e.store.FindReplies(ctx, f.msg.ChatID, f.msg.MessageID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailable("reply lookup failed", err)
		}

		// Push in reverse so the earliest child is walked first.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			k := keyOf(child)
			if _, seen := visited[k]; seen {
				continue
			}
			visited[k] = struct{}{}
			stack = append(stack, frame{msg: child, depth: f.depth + 1})
		}
	}

	return chain, nil
}
