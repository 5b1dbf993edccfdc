package object

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/twig/pkg/twigerr"
)

// Compression selects how loose objects are compressed on disk. Readers
// detect the compressor from the stored bytes, so a store may hold both.
type Compression string

const (
	CompressionZlib Compression = "zlib"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a configured compression name. An empty name
// selects zlib, the git-compatible choice.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionZlib:
		return CompressionZlib, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil)
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// Codec turns (kind, payload) pairs into addressed on-disk bytes and back.
type Codec struct {
	Format      Format
	Compression Compression
}

// DefaultCodec is sha1 addressing with zlib compression.
var DefaultCodec = Codec{Format: DefaultFormat, Compression: CompressionZlib}

// Encode builds the canonical envelope "kind len\0payload", addresses it,
// and compresses it for storage.
func (c Codec) Encode(kind Kind, payload []byte) (Hash, []byte, error) {
	if _, ok := ParseKind(string(kind)); !ok {
		return "", nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "encode: unknown object kind %q", kind)
	}
	raw := Envelope(kind, payload)
	h := c.Format.HashObject(kind, payload)

	compressed, err := compress(c.Compression, raw)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", h, err)
	}
	return h, compressed, nil
}

// Decode decompresses stored bytes and splits the envelope. Every failure
// is reported as CorruptObject.
func (c Codec) Decode(stored []byte) (Kind, []byte, error) {
	raw, err := decompress(stored)
	if err != nil {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "decompress: %v", err)
	}
	return ParseEnvelope(raw)
}

// Envelope returns the uncompressed canonical bytes of an object.
func Envelope(kind Kind, payload []byte) []byte {
	header := envelopeHeader(kind, len(payload))
	raw := make([]byte, 0, len(header)+len(payload))
	raw = append(raw, header...)
	return append(raw, payload...)
}

// ParseEnvelope splits "kind len\0payload", validating the kind and the
// declared length.
func ParseEnvelope(raw []byte) (Kind, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "invalid envelope: no NUL after header")
	}
	header := raw[:nul]
	payload := raw[nul+1:]

	sp := bytes.IndexByte(header, ' ')
	if sp < 0 {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "invalid envelope header %q", header)
	}
	kind, ok := ParseKind(string(header[:sp]))
	if !ok {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "unknown object kind %q", header[:sp])
	}
	size, err := strconv.Atoi(string(header[sp+1:]))
	if err != nil || size < 0 {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "invalid length %q in envelope", header[sp+1:])
	}
	if size != len(payload) {
		return "", nil, twigerr.Errorf(twigerr.ErrCorruptObject, "length mismatch (header=%d, actual=%d)", size, len(payload))
	}
	return kind, payload, nil
}

func compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionZstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		return enc.EncodeAll(raw, nil), nil
	case "", CompressionZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			zw.Close()
			return nil, fmt.Errorf("zlib write: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

func decompress(stored []byte) ([]byte, error) {
	if bytes.HasPrefix(stored, zstdMagic) {
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		return dec.DecodeAll(stored, nil)
	}

	zr, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
