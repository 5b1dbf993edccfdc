package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/twig/pkg/object"
)

// VerifySummary reports what Verify checked.
type VerifySummary struct {
	Roots       int           // distinct addresses named by refs, HEAD, and the index
	Reachable   int           // objects reachable from the roots, all decoded
	Loose       int           // objects present in the store
	Unreachable []object.Hash // stored objects no root reaches, sorted
}

// Verify decodes every object reachable from refs, a detached HEAD, and the
// index. Corruption or a reference to a missing object fails the whole run;
// unreachable objects are reported, not treated as errors.
func (r *Repo) Verify() (*VerifySummary, error) {
	refs, err := r.ListRefs("")
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	rootSet := make(map[object.Hash]struct{}, len(refs)+1)
	for _, h := range refs {
		rootSet[h] = struct{}{}
	}
	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if head.Hash != "" {
		rootSet[head.Hash] = struct{}{}
	}
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	for _, e := range idx.Entries {
		rootSet[e.Hash] = struct{}{}
	}

	roots := make([]object.Hash, 0, len(rootSet))
	for h := range rootSet {
		roots = append(roots, h)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	reachable, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	all, err := r.Store.All()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	summary := &VerifySummary{Roots: len(roots), Reachable: len(reachable), Loose: len(all)}
	for _, h := range all {
		if _, ok := reachable[h]; !ok {
			summary.Unreachable = append(summary.Unreachable, h)
		}
	}
	r.log().Debug("verify finished", "roots", summary.Roots, "reachable", summary.Reachable, "loose", summary.Loose)
	return summary, nil
}
