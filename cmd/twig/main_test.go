package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/twig/pkg/twigerr"
)

const testAuthor = "Test User <test@example.com>"

func chdirForTest(t *testing.T, dir string) func() {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
	return func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore cwd %s: %v", wd, err)
		}
	}
}

// isolateHome points HOME at an empty directory so no per-user config or
// ignore file leaks into a test.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	homedir.DisableCache = true
	homedir.Reset()
	return home
}

func runTwig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRunTwig(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runTwig(t, args...)
	if err != nil {
		t.Fatalf("twig %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeRepoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", rel, err)
	}
}

// setRepoUser appends a [user] section to the repository config.
func setRepoUser(t *testing.T, dir, name, email string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, ".twig", "config"), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "\n[user]\nname = %q\nemail = %q\n", name, email); err != nil {
		t.Fatalf("append config: %v", err)
	}
}

// newCLIRepo initializes a repository in a temp dir and makes it the
// working directory for the rest of the test.
func newCLIRepo(t *testing.T) string {
	t.Helper()
	isolateHome(t)
	dir := t.TempDir()
	restore := chdirForTest(t, dir)
	t.Cleanup(restore)
	mustRunTwig(t, "init")
	return dir
}

func TestCLI_InitAddCommitInspect(t *testing.T) {
	dir := newCLIRepo(t)
	if _, err := os.Stat(filepath.Join(dir, ".twig", "HEAD")); err != nil {
		t.Fatalf("init did not create .twig/HEAD: %v", err)
	}

	if out := mustRunTwig(t, "status"); !strings.Contains(out, "on main (no commits yet)") {
		t.Fatalf("status on empty repo = %q", out)
	}

	writeRepoFile(t, dir, "hello.txt", "hello\n")
	writeRepoFile(t, dir, "src/app.go", "package app\n")
	mustRunTwig(t, "add", ".")

	status := mustRunTwig(t, "status", "--short")
	if !strings.Contains(status, "A  hello.txt") || !strings.Contains(status, "A  src/app.go") {
		t.Fatalf("short status = %q", status)
	}

	out := mustRunTwig(t, "commit", "-m", "first", "--author", testAuthor)
	if !strings.HasPrefix(out, "[main ") || !strings.Contains(out, "] first") {
		t.Fatalf("commit output = %q", out)
	}

	head := strings.TrimSpace(mustRunTwig(t, "rev-parse", "HEAD"))
	if len(head) != 40 {
		t.Fatalf("rev-parse HEAD = %q", head)
	}
	if got := mustRunTwig(t, "log", "--oneline"); !strings.Contains(got, "(HEAD -> main) first") {
		t.Fatalf("log --oneline = %q", got)
	}
	if got := mustRunTwig(t, "cat-file", "-t", "HEAD"); strings.TrimSpace(got) != "commit" {
		t.Fatalf("cat-file -t HEAD = %q", got)
	}
	commitText := mustRunTwig(t, "cat-file", "-p", "HEAD")
	if !strings.HasPrefix(commitText, "tree ") || !strings.Contains(commitText, "author Test User <test@example.com>") {
		t.Fatalf("cat-file -p HEAD = %q", commitText)
	}

	tree := mustRunTwig(t, "ls-tree", "-r", "HEAD")
	if !strings.Contains(tree, "100644 blob ce013625030ba8dba906f756967f9e9ca394464a\thello.txt") {
		t.Fatalf("ls-tree -r HEAD = %q", tree)
	}
	if !strings.Contains(tree, "\tsrc/app.go") {
		t.Fatalf("ls-tree -r HEAD missing nested file: %q", tree)
	}
	if got := mustRunTwig(t, "ls-files"); got != "hello.txt\nsrc/app.go\n" {
		t.Fatalf("ls-files = %q", got)
	}
	if got := mustRunTwig(t, "hash-object", "hello.txt"); strings.TrimSpace(got) != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Fatalf("hash-object = %q", got)
	}
	if got := mustRunTwig(t, "show-ref"); got != head+" refs/heads/main\n" {
		t.Fatalf("show-ref = %q", got)
	}
	if got := mustRunTwig(t, "verify"); !strings.HasPrefix(got, "ok: verified ") {
		t.Fatalf("verify = %q", got)
	}
	if got := mustRunTwig(t, "reflog"); !strings.Contains(got, "commit (initial): first") {
		t.Fatalf("reflog = %q", got)
	}
}

func TestCLI_BranchCheckoutTag(t *testing.T) {
	dir := newCLIRepo(t)
	writeRepoFile(t, dir, "a.txt", "one\n")
	mustRunTwig(t, "add", "a.txt")
	mustRunTwig(t, "commit", "-m", "one", "--author", testAuthor)

	mustRunTwig(t, "checkout", "-b", "feature")
	writeRepoFile(t, dir, "b.txt", "two\n")
	mustRunTwig(t, "add", "b.txt")
	mustRunTwig(t, "commit", "-m", "two", "--author", testAuthor)

	if got := mustRunTwig(t, "branch"); got != "* feature\n  main\n" {
		t.Fatalf("branch = %q", got)
	}

	mustRunTwig(t, "checkout", "main")
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
		t.Fatalf("b.txt should be gone after checkout main: %v", err)
	}

	mustRunTwig(t, "tag", "v1", "feature")
	setRepoUser(t, dir, "Tag Ger", "tagger@example.com")
	mustRunTwig(t, "tag", "-a", "-m", "release", "v2", "feature")
	tags := mustRunTwig(t, "tag")
	if tags != "v1\nv2\n" {
		t.Fatalf("tag list = %q", tags)
	}
	v1 := mustRunTwig(t, "rev-parse", "v1")
	peeled := mustRunTwig(t, "rev-parse", "v2^{}")
	if v1 != peeled {
		t.Fatalf("v2^{} = %q, want %q", peeled, v1)
	}

	out := mustRunTwig(t, "checkout", "v1")
	if !strings.Contains(out, "detached") {
		t.Fatalf("checkout v1 output = %q", out)
	}
	if got := mustRunTwig(t, "status"); !strings.Contains(got, "HEAD detached at") {
		t.Fatalf("status when detached = %q", got)
	}

	_, err := runTwig(t, "branch", "-d", "nope")
	if !twigerr.Is(err, twigerr.ErrUnresolvedRef) {
		t.Fatalf("branch -d nope err = %v, want unresolved reference", err)
	}
}

func TestCLI_CheckIgnore(t *testing.T) {
	dir := newCLIRepo(t)
	writeRepoFile(t, dir, ".twigignore", "*.log\n")
	writeRepoFile(t, dir, "debug.log", "x\n")
	writeRepoFile(t, dir, "keep.txt", "x\n")

	if got := mustRunTwig(t, "check-ignore", "debug.log", "keep.txt"); got != "debug.log\n" {
		t.Fatalf("check-ignore = %q", got)
	}
	_, err := runTwig(t, "check-ignore", "keep.txt")
	if err == nil {
		t.Fatal("check-ignore with no ignored path should fail")
	}
}

func TestCLI_CommitRequiresIdentity(t *testing.T) {
	dir := newCLIRepo(t)
	writeRepoFile(t, dir, "a.txt", "a\n")
	mustRunTwig(t, "add", "a.txt")

	_, err := runTwig(t, "commit", "-m", "anon")
	if got := twigerr.ExitCodeOf(err); got != twigerr.ExitInvalidArgument {
		t.Fatalf("exit code = %d, want %d (err %v)", got, twigerr.ExitInvalidArgument, err)
	}

	setRepoUser(t, dir, "Config User", "config@example.com")
	mustRunTwig(t, "commit", "-m", "from config")
	if got := mustRunTwig(t, "cat-file", "-p", "HEAD"); !strings.Contains(got, "author Config User <config@example.com>") {
		t.Fatalf("commit did not use the configured identity: %q", got)
	}
}

func TestCLI_SignedCommitVerifies(t *testing.T) {
	dir := newCLIRepo(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}

	writeRepoFile(t, dir, "a.txt", "a\n")
	mustRunTwig(t, "add", "a.txt")
	mustRunTwig(t, "commit", "-m", "signed", "--author", testAuthor, "--signing-key", keyPath)

	out := mustRunTwig(t, "log", "--show-signature")
	if !strings.Contains(out, "Signature: good, key SHA256:") {
		t.Fatalf("log --show-signature = %q", out)
	}
}

func TestCLI_OutsideRepository(t *testing.T) {
	isolateHome(t)
	restore := chdirForTest(t, t.TempDir())
	defer restore()

	_, err := runTwig(t, "status")
	if got := twigerr.ExitCodeOf(err); got != twigerr.ExitNotARepository {
		t.Fatalf("exit code = %d, want %d (err %v)", got, twigerr.ExitNotARepository, err)
	}
}

func TestCLI_Diff(t *testing.T) {
	dir := newCLIRepo(t)
	writeRepoFile(t, dir, "f.txt", "a\nb\nc\n")
	mustRunTwig(t, "add", "f.txt")

	staged := mustRunTwig(t, "diff", "--staged")
	if !strings.Contains(staged, "new file mode 100644\n--- /dev/null\n+++ b/f.txt\n@@ -0,0 +1,3 @@\n+a\n+b\n+c\n") {
		t.Fatalf("diff --staged = %q", staged)
	}
	mustRunTwig(t, "commit", "-m", "base", "--author", testAuthor)
	if got := mustRunTwig(t, "diff"); got != "" {
		t.Fatalf("diff on clean tree = %q", got)
	}

	writeRepoFile(t, dir, "f.txt", "a\nB\nc\n")
	out := mustRunTwig(t, "diff")
	for _, want := range []string{"diff --twig a/f.txt b/f.txt\n", "@@ -1,3 +1,3 @@\n", "\n-b\n", "\n+B\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("diff missing %q:\n%s", want, out)
		}
	}
}
