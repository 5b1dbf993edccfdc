package repo

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/odvcencio/twig/pkg/object"
)

func statusEntryForPath(entries []StatusEntry, path string) *StatusEntry {
	for i := range entries {
		if entries[i].Path == path {
			return &entries[i]
		}
	}
	return nil
}

func mustStatus(t *testing.T, r *Repo) []StatusEntry {
	t.Helper()
	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return entries
}

func expectStatus(t *testing.T, entries []StatusEntry, path string, index, work FileStatus) *StatusEntry {
	t.Helper()
	e := statusEntryForPath(entries, path)
	if e == nil {
		t.Fatalf("status has no entry for %q: %+v", path, entries)
	}
	if e.IndexStatus != index || e.WorkStatus != work {
		t.Fatalf("%s: status = %s%s, want %s%s", path, e.IndexStatus.Code(), e.WorkStatus.Code(), index.Code(), work.Code())
	}
	return e
}

func TestStatus_StagedNewThenCommitted(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, "main.go", "package main\n")
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, mustStatus(t, r), "main.go", StatusNew, StatusClean)

	if _, err := r.Commit("initial", testAuthor(), object.Identity{}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, mustStatus(t, r), "main.go", StatusClean, StatusClean)
}

func TestStatus_UntrackedAndIgnored(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, ".twigignore", "*.tmp\n")
	writeWorktree(t, r, "notes.txt", "n\n")
	writeWorktree(t, r, "scratch.tmp", "s\n")
	writeWorktree(t, r, "tracked.tmp", "t\n")
	// Explicitly naming an ignored file still stages it.
	if err := r.Add([]string{"tracked.tmp"}); err != nil {
		t.Fatal(err)
	}

	entries := mustStatus(t, r)
	expectStatus(t, entries, "notes.txt", StatusUntracked, StatusUntracked)
	expectStatus(t, entries, ".twigignore", StatusUntracked, StatusUntracked)
	expectStatus(t, entries, "tracked.tmp", StatusNew, StatusClean)
	if e := statusEntryForPath(entries, "scratch.tmp"); e != nil {
		t.Fatalf("ignored file reported: %+v", e)
	}
	for _, e := range entries {
		if filepath.Base(e.Path) == "HEAD" || e.Path == ".twig" {
			t.Fatalf("metadata leaked into status: %+v", e)
		}
	}
}

func TestStatus_ModifiedAfterStaging(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"a.txt": "one\n", "b.txt": "b\n"})

	writeWorktree(t, r, "a.txt", "two\n")
	entries := mustStatus(t, r)
	expectStatus(t, entries, "a.txt", StatusClean, StatusModified)
	expectStatus(t, entries, "b.txt", StatusClean, StatusClean)

	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, mustStatus(t, r), "a.txt", StatusModified, StatusClean)

	writeWorktree(t, r, "a.txt", "three\n")
	expectStatus(t, mustStatus(t, r), "a.txt", StatusModified, StatusModified)
}

func TestStatus_Deleted(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"disk.txt": "d\n", "index.txt": "i\n"})

	if err := os.Remove(filepath.Join(r.RootDir, "disk.txt")); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove([]string{"index.txt"}, false); err != nil {
		t.Fatal(err)
	}

	entries := mustStatus(t, r)
	expectStatus(t, entries, "disk.txt", StatusClean, StatusDeleted)
	// Still on disk but no longer staged: deleted in the index and untracked.
	expectStatus(t, entries, "index.txt", StatusDeleted, StatusUntracked)
}

func TestStatus_DetectsIndexRename(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"old.txt": "rename me\n"})

	if err := os.Rename(filepath.Join(r.RootDir, "old.txt"), filepath.Join(r.RootDir, "new.txt")); err != nil {
		t.Fatal(err)
	}
	if err := r.Add([]string{"new.txt", "old.txt"}); err != nil {
		t.Fatal(err)
	}

	entries := mustStatus(t, r)
	e := expectStatus(t, entries, "new.txt", StatusRenamed, StatusClean)
	if e.RenamedFrom != "old.txt" {
		t.Fatalf("RenamedFrom = %q", e.RenamedFrom)
	}
	if old := statusEntryForPath(entries, "old.txt"); old != nil && old.IndexStatus == StatusDeleted {
		t.Fatalf("old.txt should fold into the rename: %+v", old)
	}
}

func TestStatus_DetectsWorktreeRename(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"old.txt": "moved on disk\n"})

	if err := os.Rename(filepath.Join(r.RootDir, "old.txt"), filepath.Join(r.RootDir, "new.txt")); err != nil {
		t.Fatal(err)
	}
	entries := mustStatus(t, r)
	e := statusEntryForPath(entries, "new.txt")
	if e == nil || e.WorkStatus != StatusRenamed || e.RenamedFrom != "old.txt" {
		t.Fatalf("new.txt = %+v, want worktree rename from old.txt", e)
	}
	if old := statusEntryForPath(entries, "old.txt"); old != nil && old.WorkStatus == StatusDeleted {
		t.Fatalf("old.txt should fold into the rename: %+v", old)
	}
}

func TestStatus_ExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no exec bit")
	}
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"run.sh": "#!/bin/sh\n"})
	p := filepath.Join(r.RootDir, "run.sh")
	if err := os.Chmod(p, 0o755); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, mustStatus(t, r), "run.sh", StatusClean, StatusModified)

	if err := r.Add([]string{"run.sh"}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, mustStatus(t, r), "run.sh", StatusModified, StatusClean)
}

func TestStatus_RefreshesStatData(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"main.go": "package main\n"})

	// Age the file out of the racy window, then make the index disagree
	// with it on mtime only.
	p := filepath.Join(r.RootDir, "main.go")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatal(err)
	}
	idx, err := r.ReadIndex()
	if err != nil {
		t.Fatal(err)
	}
	e, _ := idx.Entry("main.go")
	e.MTime = time.Unix(1, 0)
	if err := r.WriteIndex(idx); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, mustStatus(t, r), "main.go", StatusClean, StatusClean)

	idx, err = r.ReadIndex()
	if err != nil {
		t.Fatal(err)
	}
	e, _ = idx.Entry("main.go")
	if !e.MTime.Equal(old) {
		t.Fatalf("index mtime = %v, want refreshed %v", e.MTime, old)
	}
}

func TestStatus_SameSizeEditWithinRacyWindow(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "initial", map[string]string{"v.txt": "aaaa\n"})

	// Same size, and likely the same mtime tick as the stage.
	writeWorktree(t, r, "v.txt", "bbbb\n")
	expectStatus(t, mustStatus(t, r), "v.txt", StatusClean, StatusModified)
}

func TestFileStatusCodes(t *testing.T) {
	want := map[FileStatus]string{
		StatusClean:     " ",
		StatusNew:       "A",
		StatusModified:  "M",
		StatusRenamed:   "R",
		StatusDeleted:   "D",
		StatusUntracked: "?",
	}
	for s, code := range want {
		if got := s.Code(); got != code {
			t.Errorf("%d.Code() = %q, want %q", s, got, code)
		}
	}
}
