package object

import (
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
)

// Kind identifies the kind of object stored.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
	KindTag    Kind = "tag"
)

// ParseKind reports whether s names one of the four object kinds.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindBlob, KindTree, KindCommit, KindTag:
		return k, true
	}
	return "", false
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Hash addresses a blob for file
// modes and a tree for filemode.Dir.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == filemode.Dir
}

// TreeObj holds a directory listing. MarshalTree sorts Entries; trees read
// from the store are already in canonical order.
type TreeObj struct {
	Entries []TreeEntry
}

// Find returns the entry with the given name.
func (t *TreeObj) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Header is an extra commit or tag header preserved verbatim, such as
// "encoding" or "mergetag".
type Header struct {
	Key   string
	Value string
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Identity
	Committer Identity
	Extra     []Header
	Signature string // "gpgsig" header; excluded from the signing payload
	Message   string
}

// TagObj is an annotated tag.
type TagObj struct {
	Object  Hash
	Type    Kind
	Name    string
	Tagger  Identity // zero when the tag carries no tagger line
	Extra   []Header
	Message string
}
