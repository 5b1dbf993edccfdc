package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/twigerr"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj in the git binary layout. Each entry is
//
//	<octal mode> SP <name> NUL <raw digest>
//
// Entries are sorted by name, with directory names compared as if they
// ended in "/", so equal listings always encode to equal bytes.
func MarshalTree(f Format, tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for i, e := range sorted {
		if err := validateTreeEntryName(e.Name); err != nil {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "marshal tree: %v", err)
		}
		if i > 0 && treeSortKey(sorted[i-1]) == treeSortKey(e) {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "marshal tree: duplicate entry %q", e.Name)
		}
		if e.Mode == filemode.Empty || e.Mode.IsMalformed() {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "marshal tree: entry %q has invalid mode %o", e.Name, uint32(e.Mode))
		}
		raw, err := f.RawHash(e.Hash)
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "marshal tree: entry %q: %v", e.Name, err)
		}
		buf.WriteString(FormatMode(e.Mode))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a binary tree payload. Entries must already be in
// canonical order; anything else is MalformedPayload.
func UnmarshalTree(f Format, data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	pos := 0
	for pos < len(data) {
		sp := bytes.IndexByte(data[pos:], ' ')
		if sp < 0 {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: entry at offset %d has no mode separator", pos)
		}
		mode, err := ParseMode(string(data[pos : pos+sp]))
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: %v", err)
		}
		pos += sp + 1

		nul := bytes.IndexByte(data[pos:], 0)
		if nul < 0 {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: unterminated entry name at offset %d", pos)
		}
		name := string(data[pos : pos+nul])
		if err := validateTreeEntryName(name); err != nil {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: %v", err)
		}
		pos += nul + 1

		if len(data)-pos < f.Size() {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: truncated digest for %q", name)
		}
		h, err := f.HashFromRaw(data[pos : pos+f.Size()])
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: %v", err)
		}
		pos += f.Size()

		entry := TreeEntry{Name: name, Mode: mode, Hash: h}
		if n := len(tr.Entries); n > 0 && treeSortKey(tr.Entries[n-1]) >= treeSortKey(entry) {
			return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tree: entry %q out of order after %q", name, tr.Entries[n-1].Name)
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// FormatMode renders a mode the way tree entries store it: octal without
// leading zeros ("40000", "100644").
func FormatMode(m filemode.FileMode) string {
	return strconv.FormatUint(uint64(m), 8)
}

// ParseMode parses a tree entry mode, accepting the zero-padded form too.
func ParseMode(s string) (filemode.FileMode, error) {
	if s == "" {
		return filemode.Empty, fmt.Errorf("empty mode")
	}
	m, err := filemode.New(s)
	if err != nil {
		return filemode.Empty, fmt.Errorf("bad mode %q: %w", s, err)
	}
	if m == filemode.Empty || m.IsMalformed() {
		return filemode.Empty, fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

func validateTreeEntryName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty entry name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Header grammar shared by commits and tags
// ---------------------------------------------------------------------------

// writeHeader emits "key value\n", continuing multi-line values on lines
// that start with a single space.
func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(strings.ReplaceAll(value, "\n", "\n "))
	buf.WriteByte('\n')
}

// parseHeaders splits data at the first blank line into ordered headers and
// the free-text body.
func parseHeaders(what string, data []byte) ([]Header, string, error) {
	var headers []Header
	pos := 0
	for {
		if pos >= len(data) {
			return nil, "", twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal %s: missing header/message separator", what)
		}
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			return nil, "", twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal %s: missing header/message separator", what)
		}
		line := string(data[pos : pos+nl])
		pos += nl + 1

		if line == "" {
			return headers, string(data[pos:]), nil
		}
		if line[0] == ' ' {
			if len(headers) == 0 {
				return nil, "", twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal %s: continuation line before any header", what)
			}
			last := &headers[len(headers)-1]
			last.Value += "\n" + line[1:]
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok || key == "" {
			return nil, "", twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal %s: malformed header line %q", what, line)
		}
		headers = append(headers, Header{Key: key, Value: val})
	}
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	committer C
//	<extra headers>
//	gpgsig S     (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, "tree", string(c.TreeHash))
	for _, p := range c.Parents {
		writeHeader(&buf, "parent", string(p))
	}
	writeHeader(&buf, "author", c.Author.String())
	writeHeader(&buf, "committer", c.Committer.String())
	for _, h := range c.Extra {
		writeHeader(&buf, h.Key, h.Value)
	}
	if strings.TrimSpace(c.Signature) != "" {
		writeHeader(&buf, "gpgsig", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj. tree, author and committer are
// required; every address must be a valid digest in format f.
func UnmarshalCommit(f Format, data []byte) (*CommitObj, error) {
	headers, message, err := parseHeaders("commit", data)
	if err != nil {
		return nil, err
	}

	c := &CommitObj{Message: message}
	var seenTree, seenAuthor, seenCommitter bool
	for _, h := range headers {
		switch h.Key {
		case "tree":
			if seenTree {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: duplicate tree header")
			}
			th, err := f.ParseHash(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: tree: %v", err)
			}
			c.TreeHash = th
			seenTree = true
		case "parent":
			ph, err := f.ParseHash(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: parent: %v", err)
			}
			c.Parents = append(c.Parents, ph)
		case "author":
			id, err := ParseIdentity(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: author: %v", err)
			}
			c.Author = id
			seenAuthor = true
		case "committer":
			id, err := ParseIdentity(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: committer: %v", err)
			}
			c.Committer = id
			seenCommitter = true
		case "gpgsig":
			c.Signature = h.Value
		default:
			c.Extra = append(c.Extra, h)
		}
	}

	switch {
	case !seenTree:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: missing tree header")
	case !seenAuthor:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: missing author header")
	case !seenCommitter:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal commit: missing committer header")
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag:
//
//	object H
//	type K
//	tag NAME
//	tagger T     (omitted when zero)
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, "object", string(t.Object))
	writeHeader(&buf, "type", string(t.Type))
	writeHeader(&buf, "tag", t.Name)
	if !t.Tagger.IsZero() {
		writeHeader(&buf, "tagger", t.Tagger.String())
	}
	for _, h := range t.Extra {
		writeHeader(&buf, h.Key, h.Value)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses an annotated tag. object, type and tag are required.
func UnmarshalTag(f Format, data []byte) (*TagObj, error) {
	headers, message, err := parseHeaders("tag", data)
	if err != nil {
		return nil, err
	}

	t := &TagObj{Message: message}
	var seenObject, seenType, seenName bool
	for _, h := range headers {
		switch h.Key {
		case "object":
			oh, err := f.ParseHash(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: object: %v", err)
			}
			t.Object = oh
			seenObject = true
		case "type":
			k, ok := ParseKind(h.Value)
			if !ok {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: unknown target type %q", h.Value)
			}
			t.Type = k
			seenType = true
		case "tag":
			t.Name = h.Value
			seenName = true
		case "tagger":
			id, err := ParseIdentity(h.Value)
			if err != nil {
				return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: tagger: %v", err)
			}
			t.Tagger = id
		default:
			t.Extra = append(t.Extra, h)
		}
	}

	switch {
	case !seenObject:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: missing object header")
	case !seenType:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: missing type header")
	case !seenName:
		return nil, twigerr.Errorf(twigerr.ErrMalformedPayload, "unmarshal tag: missing tag header")
	}
	return t, nil
}
