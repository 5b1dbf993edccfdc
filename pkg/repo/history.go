package repo

import (
	"fmt"
	"iter"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/odvcencio/twig/pkg/object"
)

// HistoryCommit is one commit yielded by WalkHistory.
type HistoryCommit struct {
	Hash object.Hash
	*object.CommitObj
}

// WalkOptions selects how WalkHistory traverses the commit graph.
type WalkOptions struct {
	// FullAncestry visits every ancestor instead of only the first-parent
	// chain. Commits come out in topological order (children before
	// parents), newest committer time first among the ready ones, each
	// exactly once.
	FullAncestry bool
}

// WalkHistory returns a lazy sequence of the commits reachable from start.
// Nothing is read until the sequence is ranged over, and every range
// starts a fresh walk. A read failure is yielded as a final (nil, err)
// pair; the full-ancestry walk reads the whole graph before yielding, so
// there it arrives first.
func (r *Repo) WalkHistory(start object.Hash, opts WalkOptions) iter.Seq2[*HistoryCommit, error] {
	if opts.FullAncestry {
		return r.walkFullAncestry(start)
	}
	return r.walkFirstParent(start)
}

func (r *Repo) walkFirstParent(start object.Hash) iter.Seq2[*HistoryCommit, error] {
	return func(yield func(*HistoryCommit, error) bool) {
		current := start
		for current != "" {
			c, err := r.Store.ReadCommit(current)
			if err != nil {
				yield(nil, fmt.Errorf("walk history: read commit %s: %w", current, err))
				return
			}
			if !yield(&HistoryCommit{Hash: current, CommitObj: c}, nil) {
				return
			}
			current = ""
			if len(c.Parents) > 0 {
				current = c.Parents[0]
			}
		}
	}
}

// historyQueueItem orders the commits that are ready to be yielded:
// newest committer time first, ties broken by hash so the order is
// deterministic.
type historyQueueItem struct {
	commit *HistoryCommit
}

func historyQueueOrder(a, b interface{}) int {
	x, y := a.(historyQueueItem).commit, b.(historyQueueItem).commit
	tx, ty := x.Committer.When, y.Committer.When
	switch {
	case tx.After(ty):
		return -1
	case tx.Before(ty):
		return 1
	case x.Hash < y.Hash:
		return -1
	case x.Hash > y.Hash:
		return 1
	}
	return 0
}

// walkFullAncestry yields every commit reachable from start in topological
// order: a commit comes out only after all of its reachable children. Among
// the commits that are ready, the newest committer time goes first, so
// skewed clocks never put a parent ahead of a child.
func (r *Repo) walkFullAncestry(start object.Hash) iter.Seq2[*HistoryCommit, error] {
	return func(yield func(*HistoryCommit, error) bool) {
		if start == "" {
			return
		}
		commits, children, err := r.collectAncestry(start)
		if err != nil {
			yield(nil, err)
			return
		}

		queue := binaryheap.NewWith(historyQueueOrder)
		queue.Push(historyQueueItem{commit: commits[start]})
		for {
			v, ok := queue.Pop()
			if !ok {
				return
			}
			next := v.(historyQueueItem).commit
			if !yield(next, nil) {
				return
			}
			for _, p := range uniqueParents(next.Parents) {
				children[p]--
				if children[p] == 0 {
					queue.Push(historyQueueItem{commit: commits[p]})
				}
			}
		}
	}
}

// collectAncestry reads every commit reachable from start and counts, for
// each one, the reachable commits naming it as a parent.
func (r *Repo) collectAncestry(start object.Hash) (map[object.Hash]*HistoryCommit, map[object.Hash]int, error) {
	commits := make(map[object.Hash]*HistoryCommit)
	children := make(map[object.Hash]int)
	stack := []object.Hash{start}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := commits[h]; ok {
			continue
		}
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return nil, nil, fmt.Errorf("walk history: read commit %s: %w", h, err)
		}
		commits[h] = &HistoryCommit{Hash: h, CommitObj: c}
		for _, p := range uniqueParents(c.Parents) {
			children[p]++
			stack = append(stack, p)
		}
	}
	return commits, children, nil
}

// uniqueParents drops repeated parent addresses, keeping the first.
func uniqueParents(parents []object.Hash) []object.Hash {
	if len(parents) < 2 {
		return parents
	}
	out := make([]object.Hash, 0, len(parents))
	seen := make(map[object.Hash]struct{}, len(parents))
	for _, p := range parents {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits in reverse-chronological
// order (newest first). A limit of zero means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]*HistoryCommit, error) {
	var commits []*HistoryCommit
	for c, err := range r.WalkHistory(start, WalkOptions{}) {
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		commits = append(commits, c)
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}
