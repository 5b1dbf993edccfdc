package object

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

// Hash is a lowercase hex-encoded object digest. Its length depends on the
// repository's Format: 40 characters for sha1, 64 for sha256.
type Hash string

// Short returns the abbreviated form used in human-facing output.
func (h Hash) Short() string {
	if len(h) > 7 {
		return string(h[:7])
	}
	return string(h)
}

// Format names the digest algorithm a repository addresses objects with.
type Format string

const (
	FormatSHA1   Format = "sha1"
	FormatSHA256 Format = "sha256"
)

// DefaultFormat matches the addressing of stock git repositories.
const DefaultFormat = FormatSHA1

// ParseFormat validates a configured object format name. An empty name
// selects DefaultFormat.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultFormat, nil
	case FormatSHA1:
		return FormatSHA1, nil
	case FormatSHA256:
		return FormatSHA256, nil
	default:
		return "", fmt.Errorf("unknown object format %q", name)
	}
}

// Size is the raw digest length in bytes.
func (f Format) Size() int {
	if f == FormatSHA256 {
		return sha256.Size
	}
	return sha1.Size
}

// HexSize is the length of a Hash in this format.
func (f Format) HexSize() int {
	return f.Size() * 2
}

// New returns a fresh hasher for this format.
func (f Format) New() hash.Hash {
	if f == FormatSHA256 {
		return sha256.New()
	}
	return sha1.New()
}

// ZeroHash is the all-zero digest used for "no object" in reflogs.
func (f Format) ZeroHash() Hash {
	return Hash(strings.Repeat("0", f.HexSize()))
}

// HashBytes computes the raw digest of data.
func (f Format) HashBytes(data []byte) Hash {
	h := f.New()
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashObject computes the digest of the envelope "kind len\0payload". This
// is the object's address; it never depends on how the bytes are
// compressed on disk.
func (f Format) HashObject(kind Kind, payload []byte) Hash {
	h := f.New()
	h.Write(envelopeHeader(kind, len(payload)))
	h.Write(payload)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ParseHash validates s as a full digest in this format and normalizes it
// to lowercase.
func (f Format) ParseHash(s string) (Hash, error) {
	if len(s) != f.HexSize() {
		return "", fmt.Errorf("invalid %s hash %q: want %d hex digits, got %d", f, s, f.HexSize(), len(s))
	}
	if !IsHex(s) {
		return "", fmt.Errorf("invalid %s hash %q: not hexadecimal", f, s)
	}
	return Hash(strings.ToLower(s)), nil
}

// HashFromRaw encodes a raw digest read from a binary record.
func (f Format) HashFromRaw(raw []byte) (Hash, error) {
	if len(raw) != f.Size() {
		return "", fmt.Errorf("raw %s digest must be %d bytes, got %d", f, f.Size(), len(raw))
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// RawHash decodes h into the raw digest bytes written into binary records.
func (f Format) RawHash(h Hash) ([]byte, error) {
	if _, err := f.ParseHash(string(h)); err != nil {
		return nil, err
	}
	return hex.DecodeString(string(h))
}

// IsHex reports whether s is non-empty and consists only of hex digits.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func envelopeHeader(kind Kind, size int) []byte {
	header := make([]byte, 0, len(kind)+24)
	header = append(header, kind...)
	header = append(header, ' ')
	header = strconv.AppendInt(header, int64(size), 10)
	return append(header, 0)
}
