package repo

import (
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// Stage "hello" as a.txt and commit it.
func TestCommit_FirstCommit(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, "a.txt", "hello")
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatal(err)
	}

	h, err := r.Commit("first", testAuthor(), object.Identity{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := headHash(t, r); got != h {
		t.Fatalf("HEAD = %s, want %s", got, h)
	}

	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parents) != 0 {
		t.Fatalf("root commit parents = %v", c.Parents)
	}
	if c.Message != "first" {
		t.Fatalf("message = %q", c.Message)
	}
	if c.Committer.Name != c.Author.Name || !c.Committer.When.Equal(c.Author.When) {
		t.Fatalf("committer %+v should default to author %+v", c.Committer, c.Author)
	}

	tree, err := r.Store.ReadTree(c.TreeHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].Name != "a.txt" {
		t.Fatalf("tree entries = %+v", tree.Entries)
	}
	blob, err := r.Store.ReadBlob(tree.Entries[0].Hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob.Data) != "hello" {
		t.Fatalf("blob = %q", blob.Data)
	}

	entries, err := r.ReadReflog("HEAD", 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("reflog = %v, %v", entries, err)
	}
	if entries[0].Reason != "commit (initial): first" {
		t.Fatalf("reflog reason = %q", entries[0].Reason)
	}
}

func TestCommit_ChainsParents(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"f": "1"})
	second := commitFiles(t, r, "two\n\nbody", map[string]string{"f": "2"})

	c, err := r.Store.ReadCommit(second)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", c.Parents, first)
	}
	entries, err := r.ReadReflog("main", 1)
	if err != nil || len(entries) != 1 || entries[0].Reason != "commit: two" {
		t.Fatalf("reflog = %+v, %v", entries, err)
	}
}

// Same tree, different messages: two commits, one tree object.
func TestCommit_IdenticalTreeTwice(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a.txt": "hello"})
	before := countObjects(t, r)

	second, err := r.Commit("second", testAuthor(), object.Identity{})
	if err != nil {
		t.Fatalf("re-commit of the same tree: %v", err)
	}
	if first == second {
		t.Fatal("commits with different messages share an address")
	}
	if after := countObjects(t, r); after != before+1 {
		t.Fatalf("objects = %d, want %d (only the new commit)", after, before+1)
	}

	c1, _ := r.Store.ReadCommit(first)
	c2, _ := r.Store.ReadCommit(second)
	if c1.TreeHash != c2.TreeHash {
		t.Fatalf("tree %s != %s", c1.TreeHash, c2.TreeHash)
	}

	trees := 0
	all, err := r.Store.All()
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range all {
		if kind, _, err := r.Store.Read(h); err == nil && kind == object.KindTree {
			trees++
		}
	}
	if trees != 1 {
		t.Fatalf("tree objects = %d, want 1", trees)
	}
}

func TestCommit_RemovingEverythingRecordsEmptyTree(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "add a", map[string]string{"a.txt": "a\n"})

	if err := r.Remove([]string{"a.txt"}, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	second, err := r.Commit("remove a", testAuthor(), object.Identity{})
	if err != nil {
		t.Fatalf("Commit after removing the last file: %v", err)
	}

	c, err := r.Store.ReadCommit(second)
	if err != nil {
		t.Fatal(err)
	}
	if c.TreeHash != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("tree = %s, want the empty tree", c.TreeHash)
	}
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", c.Parents, first)
	}
	if entries := mustStatus(t, r); len(entries) != 0 {
		t.Fatalf("status after committing the removal = %+v", entries)
	}

	// An unborn branch with nothing staged commits the empty tree too.
	fresh := newTestRepo(t)
	if _, err := fresh.Commit("empty", testAuthor(), object.Identity{}); err != nil {
		t.Fatalf("Commit on empty index: %v", err)
	}
}

func TestCommit_DetachedHead(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"f": "1"})
	if err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout(detached): %v", err)
	}

	second := commitFiles(t, r, "detached work", map[string]string{"f": "2"})
	ref, _, err := r.ReadRef("HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Kind != RefDirect || ref.Hash != second {
		t.Fatalf("HEAD = %+v, want direct %s", ref, second)
	}
	main, err := r.ResolveRef("refs/heads/main")
	if err != nil || main.Hash != first {
		t.Fatalf("main = %s, %v, want untouched %s", main.Hash, err, first)
	}
}

func TestCreateCommit_DanglingReferences(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "first", map[string]string{"f": "1"})
	tree := mustTree(t, r, tip)
	missing := object.Hash(strings.Repeat("e", 40))
	before := countObjects(t, r)

	_, err := r.CreateCommit(missing, nil, testAuthor(), object.Identity{}, "x\n")
	assertCategory(t, err, twigerr.ErrDanglingReference)

	_, err = r.CreateCommit(tree, []object.Hash{missing}, testAuthor(), object.Identity{}, "x\n")
	assertCategory(t, err, twigerr.ErrDanglingReference)

	// Right address, wrong kind.
	_, err = r.CreateCommit(tip, nil, testAuthor(), object.Identity{}, "x\n")
	assertCategory(t, err, twigerr.ErrDanglingReference)
	_, err = r.CreateCommit(tree, []object.Hash{tree}, testAuthor(), object.Identity{}, "x\n")
	assertCategory(t, err, twigerr.ErrDanglingReference)

	if after := countObjects(t, r); after != before {
		t.Fatalf("failed CreateCommit wrote objects: %d -> %d", before, after)
	}
}

func TestCreateCommit_StampsIdentities(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "first", map[string]string{"f": "1"})
	tree := mustTree(t, r, tip)

	later := testEpoch.Add(time.Hour)
	pinClock(r, later)
	committer := object.Identity{Name: "C O Mitter", Email: "c@example.com"}
	h, err := r.CreateCommit(tree, []object.Hash{tip}, object.Identity{Name: "A", Email: "a@example.com"}, committer, "stamped\n")
	if err != nil {
		t.Fatal(err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Author.When.Equal(later) || !c.Committer.When.Equal(later) {
		t.Fatalf("author/committer time = %v/%v, want %v", c.Author.When, c.Committer.When, later)
	}
	if c.Committer.Name != "C O Mitter" {
		t.Fatalf("committer = %+v", c.Committer)
	}
}

func TestCommitWithSigner_StoresSignature(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, "f", "1")
	if err := r.Add([]string{"f"}); err != nil {
		t.Fatal(err)
	}

	var payload []byte
	h, err := r.CommitWithSigner("signed", testAuthor(), object.Identity{}, func(p []byte) (string, error) {
		payload = p
		return "-----BEGIN SSH SIGNATURE-----\nabc\n-----END SSH SIGNATURE-----", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Signature, "abc") {
		t.Fatalf("signature = %q", c.Signature)
	}
	if strings.Contains(string(payload), "gpgsig") {
		t.Fatal("signing payload includes the signature header")
	}
	if string(object.CommitSigningPayload(c)) != string(payload) {
		t.Fatal("stored commit does not reproduce the signed payload")
	}
}
