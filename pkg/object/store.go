package object

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/twigerr"
)

// MinPrefixLen is the shortest hex prefix ResolvePrefix accepts.
const MinPrefixLen = 4

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	root  string
	codec Codec
}

// NewStore creates a Store rooted at the given directory using
// DefaultCodec. The objects/ subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return NewStoreWithCodec(root, DefaultCodec)
}

// NewStoreWithCodec creates a Store that addresses and compresses objects
// with codec.
func NewStoreWithCodec(root string, codec Codec) *Store {
	if codec.Format == "" {
		codec.Format = DefaultFormat
	}
	if codec.Compression == "" {
		codec.Compression = CompressionZlib
	}
	return &Store{root: root, codec: codec}
}

// Format is the digest algorithm this store addresses objects with.
func (s *Store) Format() Format {
	return s.codec.Format
}

// Codec returns the store's codec.
func (s *Store) Codec() Codec {
	return s.codec
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

func (s *Store) validHash(h Hash) bool {
	_, err := s.codec.Format.ParseHash(string(h))
	return err == nil && strings.ToLower(string(h)) == string(h)
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !s.validHash(h) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing content that
// is already present is a no-op. Writes are atomic: data is written to a
// temp file and then renamed into place, so concurrent writers of the same
// object race harmlessly.
func (s *Store) Write(kind Kind, data []byte) (Hash, error) {
	h := s.codec.Format.HashObject(kind, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	_, stored, err := s.codec.Encode(kind, data)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", twigerr.Errorf(twigerr.ErrIO, "object write mkdir: %v", err)
	}

	// Atomic write via temp + rename.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", twigerr.Errorf(twigerr.ErrIO, "object write tmpfile: %v", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", twigerr.Errorf(twigerr.ErrIO, "object write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", twigerr.Errorf(twigerr.ErrIO, "object write close: %v", err)
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		os.Remove(tmpName)
		return "", twigerr.Errorf(twigerr.ErrIO, "object write chmod: %v", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", twigerr.Errorf(twigerr.ErrIO, "object write rename: %v", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its kind and payload. The
// decoded envelope is re-hashed, so damaged bytes that still happen to
// decompress are reported as CorruptObject rather than returned.
func (s *Store) Read(h Hash) (Kind, []byte, error) {
	if !s.validHash(h) {
		return "", nil, twigerr.Errorf(twigerr.ErrObjectNotFound, "object %s: not a full %s address", h, s.codec.Format)
	}
	stored, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, twigerr.Errorf(twigerr.ErrObjectNotFound, "object %s not found", h)
		}
		return "", nil, twigerr.Errorf(twigerr.ErrIO, "object read %s: %v", h, err)
	}

	kind, payload, err := s.codec.Decode(stored)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if got := s.codec.Format.HashObject(kind, payload); got != h {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "object read %s: content hashes to %s", h, got)
	}
	return kind, payload, nil
}

// ResolvePrefix expands an abbreviated hex address into the single object
// it names.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefixLen || len(prefix) > s.codec.Format.HexSize() || !IsHex(prefix) {
		return "", twigerr.Errorf(twigerr.ErrInvalidArgument, "%q is not an address prefix", prefix)
	}
	if len(prefix) == s.codec.Format.HexSize() {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", twigerr.Errorf(twigerr.ErrObjectNotFound, "object %s not found", prefix)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "objects", prefix[:2]))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", twigerr.Errorf(twigerr.ErrIO, "resolve prefix %s: %v", prefix, err)
	}

	var matches []Hash
	rest := prefix[2:]
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, rest) || !s.validHash(Hash(prefix[:2]+name)) {
			continue
		}
		matches = append(matches, Hash(prefix[:2]+name))
	}

	switch len(matches) {
	case 0:
		return "", twigerr.Errorf(twigerr.ErrObjectNotFound, "no object matches prefix %s", prefix)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
		return "", twigerr.Errorf(twigerr.ErrAmbiguousAddress, "prefix %s is ambiguous: %d candidates (%s, ...)", prefix, len(matches), matches[0])
	}
}

// All lists every loose object address in the store, sorted.
func (s *Store) All() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanout, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, twigerr.Errorf(twigerr.ErrIO, "list objects: %v", err)
	}

	var out []Hash
	for _, d := range fanout {
		if !d.IsDir() || len(d.Name()) != 2 || !IsHex(d.Name()) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, d.Name()))
		if err != nil {
			return nil, twigerr.Errorf(twigerr.ErrIO, "list objects: %v", err)
		}
		for _, e := range entries {
			h := Hash(d.Name() + e.Name())
			if !e.IsDir() && s.validHash(h) {
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readKind(h Hash, want Kind) ([]byte, error) {
	kind, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "object %s: type mismatch: got %q, want %q", h, kind, want)
	}
	return data, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(KindBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readKind(h, KindBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(s.codec.Format, tr)
	if err != nil {
		return "", err
	}
	return s.Write(KindTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readKind(h, KindTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(s.codec.Format, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(KindCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readKind(h, KindCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(s.codec.Format, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}

// WriteTag serializes and stores an annotated TagObj.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	return s.Write(KindTag, MarshalTag(t))
}

// ReadTag reads and deserializes an annotated TagObj.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	data, err := s.readKind(h, KindTag)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTag(s.codec.Format, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return t, nil
}
