package repo

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
)

// HashObject computes the address data would have as an object of kind
// and, when write is set, stores it. Tree, commit, and tag payloads must
// parse; a malformed one is rejected before anything is written. A commit or
// tag that is stored must also name objects already in the store with the
// right kind, otherwise it fails DanglingReference.
func (r *Repo) HashObject(kind object.Kind, data []byte, write bool) (object.Hash, error) {
	if err := r.checkPayload(kind, data, write); err != nil {
		return "", fmt.Errorf("hash object: %w", err)
	}
	if !write {
		return r.Format().HashObject(kind, data), nil
	}
	h, err := r.Store.Write(kind, data)
	if err != nil {
		return "", fmt.Errorf("hash object: %w", err)
	}
	return h, nil
}

func (r *Repo) checkPayload(kind object.Kind, data []byte, checkRefs bool) error {
	switch kind {
	case object.KindTree:
		_, err := object.UnmarshalTree(r.Format(), data)
		return err
	case object.KindCommit:
		c, err := object.UnmarshalCommit(r.Format(), data)
		if err != nil || !checkRefs {
			return err
		}
		if err := r.expectKind(c.TreeHash, object.KindTree); err != nil {
			return fmt.Errorf("tree: %w", err)
		}
		for _, p := range c.Parents {
			if err := r.expectKind(p, object.KindCommit); err != nil {
				return fmt.Errorf("parent: %w", err)
			}
		}
	case object.KindTag:
		t, err := object.UnmarshalTag(r.Format(), data)
		if err != nil || !checkRefs {
			return err
		}
		if err := r.expectKind(t.Object, t.Type); err != nil {
			return fmt.Errorf("tagged object: %w", err)
		}
	}
	return nil
}
