package object

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/twigerr"
)

// ReachableSet returns all object hashes reachable from roots by following
// object references, decoding every object on the way. Missing roots are
// ignored; a missing object referenced by a reachable one is a
// DanglingReference. Submodule entries point outside the store and are not
// followed.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]struct{}, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	type item struct {
		hash     Hash
		referrer Hash
	}
	stack := make([]item, 0, len(roots))
	for _, h := range roots {
		stack = append(stack, item{hash: h})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[it.hash]; ok {
			continue
		}
		if !s.Has(it.hash) {
			if it.referrer == "" {
				continue
			}
			return nil, twigerr.Errorf(twigerr.ErrDanglingReference, "object %s references missing object %s", it.referrer, it.hash)
		}
		out[it.hash] = struct{}{}

		kind, data, err := s.Read(it.hash)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", it.hash, err)
		}
		refs, err := referencedHashes(s.codec.Format, kind, data)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", it.hash, kind, err)
		}
		for _, ref := range refs {
			stack = append(stack, item{hash: ref, referrer: it.hash})
		}
	}

	return out, nil
}

func referencedHashes(f Format, kind Kind, data []byte) ([]Hash, error) {
	switch kind {
	case KindBlob:
		return nil, nil
	case KindTag:
		tag, err := UnmarshalTag(f, data)
		if err != nil {
			return nil, err
		}
		return []Hash{tag.Object}, nil
	case KindCommit:
		commit, err := UnmarshalCommit(f, data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case KindTree:
		tree, err := UnmarshalTree(f, data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			if e.Mode == filemode.Submodule {
				continue
			}
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object kind %q", kind)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.ToLower(strings.TrimSpace(string(h))))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
