package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

var testEpoch = time.Unix(1700000000, 0).UTC()

// newTestRepo initializes a repository in a temp dir with a pinned clock
// and a configured user.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	cfg := DefaultConfig()
	cfg.User = UserConfig{Name: "A U Thor", Email: "author@example.com"}
	r, err := InitWithConfig(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	pinClock(r, testEpoch)
	return r
}

func pinClock(r *Repo, at time.Time) {
	r.now = func() time.Time { return at }
}

func testAuthor() object.Identity {
	return object.NewIdentity("A U Thor", "author@example.com", testEpoch)
}

func identityAt(offset time.Duration) object.Identity {
	return object.NewIdentity("A U Thor", "author@example.com", testEpoch.Add(offset))
}

// writeWorktree writes content to rel under the repo root, creating parent
// directories.
func writeWorktree(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	p := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readWorktree(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// commitFiles writes and adds files, then commits them.
func commitFiles(t *testing.T, r *Repo, msg string, files map[string]string) object.Hash {
	t.Helper()
	paths := make([]string, 0, len(files))
	for rel, content := range files {
		writeWorktree(t, r, rel, content)
		paths = append(paths, filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	}
	if err := r.Add(paths); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h, err := r.Commit(msg, testAuthor(), object.Identity{})
	if err != nil {
		t.Fatalf("Commit(%q): %v", msg, err)
	}
	return h
}

func assertCategory(t *testing.T, err error, want twigerr.Category) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want category %s", want)
	}
	if got := twigerr.CategoryOf(err); got != want {
		t.Fatalf("category = %q, want %q (err: %v)", got, want, err)
	}
}

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected directory %q to exist: %v", path, err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %q to be a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %q to exist: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("expected %q to be a file, got directory", path)
	}
}

func headHash(t *testing.T, r *Repo) object.Hash {
	t.Helper()
	resolved, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	return resolved.Hash
}
