package repo

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path string
	Mode filemode.FileMode
	Hash object.Hash
}

// BuildTree converts flat index entries into a hierarchical tree structure,
// writing every TreeObj to the store bottom-up and returning the root hash.
//
// Entries use forward-slash paths (e.g. "pkg/util/util.go"). BuildTree
// partitions them on their first path segment and recurses into each
// directory. Empty directories cannot be represented. A name that is both a
// file and a directory, or an unmerged entry, means the index is corrupt.
func (r *Repo) BuildTree(entries []*index.Entry) (object.Hash, error) {
	for _, e := range entries {
		if e.Stage != 0 {
			return "", twigerr.Errorf(twigerr.ErrCorruptIndex, "build tree: %q is unmerged (stage %d)", e.Path, e.Stage)
		}
	}
	return r.buildTreeDir(entries, "")
}

// buildTreeDir builds the TreeObj for entries, whose paths are relative to
// prefix, and writes it to the store.
func (r *Repo) buildTreeDir(entries []*index.Entry, prefix string) (object.Hash, error) {
	files := make(map[string]*index.Entry)      // name -> entry
	subdirs := make(map[string][]*index.Entry) // child dir -> entries relative to it
	var order []string

	for _, e := range entries {
		rel := e.Path
		if prefix != "" {
			rel = strings.TrimPrefix(rel, prefix+"/")
		}
		name, rest, nested := strings.Cut(rel, "/")
		if name == "" || (nested && rest == "") {
			return "", twigerr.Errorf(twigerr.ErrCorruptIndex, "build tree: bad path %q", e.Path)
		}

		_, isFile := files[name]
		_, isDir := subdirs[name]
		if nested && isFile || !nested && isDir {
			return "", twigerr.Errorf(twigerr.ErrCorruptIndex, "build tree: %q is both a file and a directory", path.Join(prefix, name))
		}
		if !nested && isFile {
			return "", twigerr.Errorf(twigerr.ErrCorruptIndex, "build tree: duplicate entry %q", e.Path)
		}

		if !isFile && !isDir {
			order = append(order, name)
		}
		if nested {
			subdirs[name] = append(subdirs[name], e)
		} else {
			files[name] = e
		}
	}

	tree := &object.TreeObj{Entries: make([]object.TreeEntry, 0, len(order))}
	for _, name := range order {
		if e, ok := files[name]; ok {
			tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: e.Mode, Hash: e.Hash})
			continue
		}
		childPrefix := path.Join(prefix, name)
		subHash, err := r.buildTreeDir(subdirs[name], childPrefix)
		if err != nil {
			return "", err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash})
	}

	// WriteTree encodes siblings in canonical order, so staging order does
	// not affect the address.
	h, err := r.Store.WriteTree(tree)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes) in tree order.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		result = append(result, TreeFileEntry{Path: fullPath, Mode: entry.Mode, Hash: entry.Hash})
	}
	return result, nil
}

// IndexFromTree returns an index holding every file of tree, without stat
// data.
func (r *Repo) IndexFromTree(tree object.Hash) (*index.Index, error) {
	idx := index.New(r.Format())
	if tree == "" {
		return idx, nil
	}
	files, err := r.FlattenTree(tree)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		idx.Upsert(&index.Entry{Path: f.Path, Hash: f.Hash, Mode: f.Mode})
	}
	return idx, nil
}
