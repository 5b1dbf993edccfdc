package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

func TestVerify_CleanRepository(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "one", map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n"})
	if err := r.CreateTag("v1", tip, false); err != nil {
		t.Fatal(err)
	}

	summary, err := r.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// commit, root tree, dir tree, two blobs.
	if summary.Reachable != 5 || summary.Loose != 5 {
		t.Fatalf("summary = %+v, want 5 reachable and 5 loose", summary)
	}
	if len(summary.Unreachable) != 0 {
		t.Fatalf("unreachable = %v", summary.Unreachable)
	}
}

func TestVerify_ReportsUnreachable(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "one", map[string]string{"a.txt": "a\n"})
	stray, err := r.HashObject(object.KindBlob, []byte("stray\n"), true)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := r.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(summary.Unreachable) != 1 || summary.Unreachable[0] != stray {
		t.Fatalf("unreachable = %v, want [%s]", summary.Unreachable, stray)
	}
}

func TestVerify_FailsOnCorruptObject(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "one", map[string]string{"a.txt": "a\n"})
	tree := mustTree(t, r, tip)

	p := filepath.Join(r.Dir, "objects", string(tree)[:2], string(tree)[2:])
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.Chmod(p, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = r.Verify()
	assertCategory(t, err, twigerr.ErrCorruptObject)
}

func TestHashObject(t *testing.T) {
	r := newTestRepo(t)

	h, err := r.HashObject(object.KindBlob, []byte("hello\n"), false)
	if err != nil {
		t.Fatal(err)
	}
	if h != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Fatalf("hash = %s", h)
	}
	if r.Store.Has(h) {
		t.Fatal("HashObject without write stored the object")
	}

	if _, err := r.HashObject(object.KindBlob, []byte("hello\n"), true); err != nil {
		t.Fatal(err)
	}
	if !r.Store.Has(h) {
		t.Fatal("HashObject with write did not store the object")
	}

	for _, kind := range []object.Kind{object.KindTree, object.KindCommit, object.KindTag} {
		_, err := r.HashObject(kind, []byte("not a valid payload"), true)
		assertCategory(t, err, twigerr.ErrMalformedPayload)
	}
}

func TestHashObject_StoredCommitAndTagNeedTheirTargets(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "one", map[string]string{"a.txt": "a\n"})
	tree := mustTree(t, r, tip)
	missing := object.Hash("0123456789abcdef0123456789abcdef01234567")

	for _, tc := range []struct {
		name string
		kind object.Kind
		data []byte
	}{
		{"missing tree", object.KindCommit, object.MarshalCommit(&object.CommitObj{
			TreeHash: missing, Author: testAuthor(), Committer: testAuthor(), Message: "x\n",
		})},
		{"parent is a tree", object.KindCommit, object.MarshalCommit(&object.CommitObj{
			TreeHash: tree, Parents: []object.Hash{tree}, Author: testAuthor(), Committer: testAuthor(), Message: "x\n",
		})},
		{"tag type mismatch", object.KindTag, object.MarshalTag(&object.TagObj{
			Object: tree, Type: object.KindCommit, Name: "v1", Tagger: testAuthor(), Message: "x\n",
		})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// Hashing alone does not look at the store.
			h, err := r.HashObject(tc.kind, tc.data, false)
			if err != nil {
				t.Fatalf("HashObject(write=false): %v", err)
			}
			_, err = r.HashObject(tc.kind, tc.data, true)
			assertCategory(t, err, twigerr.ErrDanglingReference)
			if r.Store.Has(h) {
				t.Fatal("rejected payload was stored")
			}
		})
	}

	good := object.MarshalCommit(&object.CommitObj{
		TreeHash: tree, Parents: []object.Hash{tip}, Author: testAuthor(), Committer: testAuthor(), Message: "two\n",
	})
	h, err := r.HashObject(object.KindCommit, good, true)
	if err != nil || !r.Store.Has(h) {
		t.Fatalf("HashObject(valid commit) = %s, %v", h, err)
	}
}
