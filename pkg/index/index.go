// Package index implements the staging area: a table of (path, mode, blob,
// stat data) sorted by path and persisted in the git DIRC version 2 format.
//
// The file has four sections:
//
//	header      "DIRC", version (2), entry count; 4 bytes each, big endian
//	entries     ctime s/ns, mtime s/ns, dev, ino, mode, uid, gid, size
//	            (uint32 each), raw digest, 16-bit flags, path, 1-8 NULs
//	            padding the entry to a multiple of 8 bytes
//	extensions  4-byte signature, 4-byte length, data; read and skipped
//	trailer     digest of everything before it
//
// Digests are 20 bytes in sha1 repositories and 32 in sha256 ones.
package index

import (
	"sort"
	"time"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/object"
)

// Version is the only on-disk version read or written.
const Version = 2

// Entry is one staged file.
type Entry struct {
	Path string // slash-separated, relative to the worktree root
	Hash object.Hash
	Mode filemode.FileMode

	CTime time.Time
	MTime time.Time
	Dev   uint32
	Ino   uint32
	UID   uint32
	GID   uint32
	Size  uint32

	AssumeValid bool
	Stage       uint8
}

// Index is the decoded staging area. Entries are kept sorted by Path and
// unique.
type Index struct {
	Format  object.Format
	Entries []*Entry
}

// New returns an empty index for repositories addressed with f.
func New(f object.Format) *Index {
	return &Index{Format: f}
}

func (idx *Index) search(path string) int {
	return sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].Path >= path
	})
}

// Entry returns the entry staged at path.
func (idx *Index) Entry(path string) (*Entry, bool) {
	i := idx.search(path)
	if i < len(idx.Entries) && idx.Entries[i].Path == path {
		return idx.Entries[i], true
	}
	return nil, false
}

// Upsert inserts e at its sorted position, replacing any entry with the same
// path.
func (idx *Index) Upsert(e *Entry) {
	i := idx.search(e.Path)
	if i < len(idx.Entries) && idx.Entries[i].Path == e.Path {
		idx.Entries[i] = e
		return
	}
	idx.Entries = append(idx.Entries, nil)
	copy(idx.Entries[i+1:], idx.Entries[i:])
	idx.Entries[i] = e
}

// Remove deletes the entry at path and reports whether one existed.
func (idx *Index) Remove(path string) bool {
	i := idx.search(path)
	if i >= len(idx.Entries) || idx.Entries[i].Path != path {
		return false
	}
	idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
	return true
}

// Paths lists staged paths in index order.
func (idx *Index) Paths() []string {
	out := make([]string, len(idx.Entries))
	for i, e := range idx.Entries {
		out[i] = e.Path
	}
	return out
}

// Len is the number of staged entries.
func (idx *Index) Len() int {
	return len(idx.Entries)
}
