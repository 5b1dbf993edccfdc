package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// CommitAttempts is how many times Commit re-reads the branch and retries
// when another writer moved it first.
const CommitAttempts = 3

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CreateCommit writes a commit object for tree with the given parents. The
// tree and every parent must already be in the store with the right kind,
// otherwise it fails DanglingReference and writes nothing.
func (r *Repo) CreateCommit(tree object.Hash, parents []object.Hash, author, committer object.Identity, message string) (object.Hash, error) {
	return r.createCommit(tree, parents, author, committer, message, nil)
}

func (r *Repo) createCommit(tree object.Hash, parents []object.Hash, author, committer object.Identity, message string, signer CommitSigner) (object.Hash, error) {
	if err := r.expectKind(tree, object.KindTree); err != nil {
		return "", fmt.Errorf("create commit: tree: %w", err)
	}
	for _, p := range parents {
		if err := r.expectKind(p, object.KindCommit); err != nil {
			return "", fmt.Errorf("create commit: parent: %w", err)
		}
	}

	now := r.clock()
	if author.When.IsZero() {
		author.When = now
	}
	if committer.IsZero() {
		committer = author
	} else if committer.When.IsZero() {
		committer.When = now
	}

	commitObj := &object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("create commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	h, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("create commit: write commit: %w", err)
	}
	return h, nil
}

// expectKind fails DanglingReference unless h names an object of kind want.
func (r *Repo) expectKind(h object.Hash, want object.Kind) error {
	kind, _, err := r.Store.Read(h)
	if err != nil {
		if twigerr.Is(err, twigerr.ErrObjectNotFound) {
			return twigerr.Errorf(twigerr.ErrDanglingReference, "%s %s is not in the store", want, h)
		}
		return err
	}
	if kind != want {
		return twigerr.Errorf(twigerr.ErrDanglingReference, "%s is a %s, not a %s", h, kind, want)
	}
	return nil
}

// Commit records the index as a new commit on the current branch and
// returns its hash. committer may be zero, in which case the author is used.
func (r *Repo) Commit(message string, author, committer object.Identity) (object.Hash, error) {
	return r.CommitWithSigner(message, author, committer, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is
// provided.
//
//  1. Build the tree from the index (the index itself is left unchanged);
//     an empty index records the empty tree
//  2. Resolve HEAD to the branch it names and that branch's tip
//  3. Write a commit whose parent is that tip (none on an unborn branch)
//  4. Compare-and-swap the branch from the tip to the new commit
//
// When another writer moves the branch between steps 2 and 4, the loop
// starts again from step 2, up to CommitAttempts times, and then fails
// ReferenceConflict.
func (r *Repo) CommitWithSigner(message string, author, committer object.Identity, signer CommitSigner) (object.Hash, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	treeHash, err := r.BuildTree(idx.Entries)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= CommitAttempts; attempt++ {
		head, err := r.ResolveRef("HEAD")
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}

		var parents []object.Hash
		reason := "commit (initial): "
		if head.Hash != "" {
			parents = []object.Hash{head.Hash}
			reason = "commit: "
		}
		reason += firstLine(message)

		commitHash, err := r.createCommit(treeHash, parents, author, committer, message, signer)
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}

		// head.Name is the branch HEAD names, or HEAD itself when detached.
		// An empty head.Hash requires the branch to still be unborn.
		err = r.updateRefCAS(head.Name, commitHash, reason, head.Hash)
		if err == nil {
			return commitHash, nil
		}
		if !errors.Is(err, ErrRefCASMismatch) {
			return "", fmt.Errorf("commit: %w", err)
		}
		r.log().Debug("commit lost ref race", "ref", head.Name, "attempt", attempt, "parent", head.Hash)
		lastErr = err
	}
	return "", fmt.Errorf("commit: gave up after %d attempts: %w", CommitAttempts, lastErr)
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}
