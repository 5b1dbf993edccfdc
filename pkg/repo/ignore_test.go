package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func newIgnoreChecker(t *testing.T, r *Repo, global string) *IgnoreChecker {
	t.Helper()
	ic, err := r.NewIgnoreChecker(global)
	if err != nil {
		t.Fatalf("NewIgnoreChecker: %v", err)
	}
	return ic
}

func expectIgnored(t *testing.T, ic *IgnoreChecker, path string, isDir, want bool) {
	t.Helper()
	if got := ic.IsIgnored(path, isDir); got != want {
		t.Errorf("IsIgnored(%q, dir=%v) = %v, want %v", path, isDir, got, want)
	}
}

// Metadata directories are ignored without any ignore file.
func TestIgnore_MetaDirsAlwaysIgnored(t *testing.T) {
	r := newTestRepo(t)
	ic := newIgnoreChecker(t, r, "")

	expectIgnored(t, ic, ".twig", true, true)
	expectIgnored(t, ic, ".twig/HEAD", false, true)
	expectIgnored(t, ic, ".git/config", false, true)
	expectIgnored(t, ic, "sub/.git/objects/ab", false, true)
	expectIgnored(t, ic, "main.go", false, false)
	expectIgnored(t, ic, "", false, false)
}

func TestIgnore_GlobDirectoryAndNegation(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, IgnoreFileName, "# build output\n*.log\n!keep.log\nbuild/\n\n")
	ic := newIgnoreChecker(t, r, "")

	expectIgnored(t, ic, "debug.log", false, true)
	expectIgnored(t, ic, "nested/deep/trace.log", false, true)
	expectIgnored(t, ic, "keep.log", false, false)
	expectIgnored(t, ic, "debug.txt", false, false)
	expectIgnored(t, ic, "# build output", false, false)

	expectIgnored(t, ic, "build", true, true)
	expectIgnored(t, ic, "build/output.o", false, true)
	// "build/" only matches directories.
	expectIgnored(t, ic, "build", false, false)
}

// A nested ignore file only applies below its own directory.
func TestIgnore_NestedFilesAreScoped(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, "web/"+IgnoreFileName, "dist/\n*.map\n")
	writeWorktree(t, r, "web/app.js", "x")
	ic := newIgnoreChecker(t, r, "")

	expectIgnored(t, ic, "web/app.js.map", false, true)
	expectIgnored(t, ic, "web/dist/bundle.js", false, true)
	expectIgnored(t, ic, "app.js.map", false, false)
	expectIgnored(t, ic, "dist/bundle.js", false, false)
}

// Ignore files inside an ignored directory are never read.
func TestIgnore_SkipsIgnoredDirectories(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, IgnoreFileName, "vendor/\n")
	writeWorktree(t, r, "vendor/"+IgnoreFileName, "!*\n")
	ic := newIgnoreChecker(t, r, "")

	expectIgnored(t, ic, "vendor/lib.go", false, true)
}

// Later sources override earlier ones: global, then info/exclude, then
// the worktree.
func TestIgnore_LayeredSources(t *testing.T) {
	r := newTestRepo(t)
	global := filepath.Join(t.TempDir(), "ignore")
	if err := os.WriteFile(global, []byte("*.swp\n*.bak\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(r.Dir, "info"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, "info", "exclude"), []byte("local/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeWorktree(t, r, IgnoreFileName, "!important.bak\n")
	ic := newIgnoreChecker(t, r, global)

	expectIgnored(t, ic, "notes.swp", false, true)
	expectIgnored(t, ic, "old.bak", false, true)
	expectIgnored(t, ic, "important.bak", false, false)
	expectIgnored(t, ic, "local/scratch.txt", false, true)

	// A missing global file is not an error.
	newIgnoreChecker(t, r, filepath.Join(t.TempDir(), "absent"))
}

func TestGlobalIgnorePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	if got, want := GlobalIgnorePath("/home/u"), filepath.Join("/home/u", ".config", "twig", "ignore"); got != want {
		t.Fatalf("GlobalIgnorePath = %q, want %q", got, want)
	}
	if got := GlobalIgnorePath(""); got != "" {
		t.Fatalf("GlobalIgnorePath(\"\") = %q", got)
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, want := GlobalIgnorePath(""), filepath.Join("/xdg", "twig", "ignore"); got != want {
		t.Fatalf("GlobalIgnorePath(xdg) = %q, want %q", got, want)
	}
}
