package repo

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-git.v4/plumbing/format/gitignore"

	"github.com/odvcencio/twig/pkg/twigerr"
)

// IgnoreFileName is the per-directory ignore file. Its patterns apply to
// the directory holding it and everything below.
const IgnoreFileName = ".twigignore"

// IgnoreChecker determines if a path should be ignored. Sources are layered
// lowest precedence first: the global ignore file, .twig/info/exclude, then
// every .twigignore from the root downward. The last matching pattern wins,
// so "!pattern" re-includes.
type IgnoreChecker struct {
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

// GlobalIgnorePath is the per-user ignore file, or "" when no location is
// known.
func GlobalIgnorePath(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "twig", "ignore")
	}
	if home != "" {
		return filepath.Join(home, ".config", "twig", "ignore")
	}
	return ""
}

// NewIgnoreChecker loads ignore rules for the repository. globalPath may be
// empty.
func (r *Repo) NewIgnoreChecker(globalPath string) (*IgnoreChecker, error) {
	ic := &IgnoreChecker{}

	if globalPath != "" {
		if err := ic.loadOSFile(globalPath); err != nil {
			return nil, err
		}
	}
	if err := ic.loadOSFile(r.metaPath("info", "exclude")); err != nil {
		return nil, err
	}
	if err := ic.loadTree(r.Worktree, nil); err != nil {
		return nil, err
	}

	ic.matcher = gitignore.NewMatcher(ic.patterns)
	return ic, nil
}

func (ic *IgnoreChecker) loadOSFile(p string) error {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return twigerr.Errorf(twigerr.ErrIO, "read ignore file %s: %v", p, err)
	}
	defer f.Close()
	ic.patterns = append(ic.patterns, parseIgnoreLines(f, nil)...)
	return nil
}

// loadTree reads dir's ignore file, then descends into subdirectories that
// are not themselves ignored.
func (ic *IgnoreChecker) loadTree(wt billy.Filesystem, dir []string) error {
	dirPath := path.Join(dir...)
	f, err := wt.Open(path.Join(dirPath, IgnoreFileName))
	switch {
	case err == nil:
		ic.patterns = append(ic.patterns, parseIgnoreLines(f, dir)...)
		f.Close()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return twigerr.Errorf(twigerr.ErrIO, "read %s: %v", path.Join(dirPath, IgnoreFileName), err)
	}

	infos, err := wt.ReadDir(dirPathOrRoot(dirPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return twigerr.Errorf(twigerr.ErrIO, "read dir %s: %v", dirPathOrRoot(dirPath), err)
	}
	matcher := gitignore.NewMatcher(ic.patterns)
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		child := append(append([]string{}, dir...), info.Name())
		if isMetaDir(info.Name()) || matcher.Match(child, true) {
			continue
		}
		if err := ic.loadTree(wt, child); err != nil {
			return err
		}
	}
	return nil
}

func dirPathOrRoot(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func parseIgnoreLines(r io.Reader, domain []string) []gitignore.Pattern {
	var ps []gitignore.Pattern
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, domain))
	}
	return ps
}

func isMetaDir(name string) bool {
	return name == DirName || name == ".git"
}

// IsIgnored checks whether a relative path should be ignored. The path should
// use forward slashes and be relative to the repository root. Anything
// inside .twig/ or .git/ is always ignored.
func (ic *IgnoreChecker) IsIgnored(relPath string, isDir bool) bool {
	parts := strings.Split(strings.Trim(filepath.ToSlash(relPath), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return false
	}
	for _, p := range parts {
		if isMetaDir(p) {
			return true
		}
	}
	// A path is ignored when it or any parent directory matches.
	for i := 1; i < len(parts); i++ {
		if ic.matcher.Match(parts[:i], true) {
			return true
		}
	}
	return ic.matcher.Match(parts, isDir)
}
