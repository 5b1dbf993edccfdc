package index

import (
	"bytes"
	"encoding/binary"
	"time"

	"gopkg.in/src-d/go-git.v4/plumbing/filemode"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

const (
	signature  = "DIRC"
	headerSize = 12
	statSize   = 40 // ten uint32 stat fields ahead of the digest

	flagAssumeValid = 0x8000
	flagExtended    = 0x4000
	stageMask       = 0x3000
	stageShift      = 12
	nameMask        = 0x0fff
)

func fixedSize(f object.Format) int {
	return statSize + f.Size() + 2
}

// Encode serializes idx. Entries are written in Path order; an out-of-order
// or duplicate entry is an InvalidArgument.
func Encode(idx *Index) ([]byte, error) {
	f := idx.Format
	if f == "" {
		f = object.DefaultFormat
	}

	var buf bytes.Buffer
	buf.WriteString(signature)
	writeUint32(&buf, Version)
	writeUint32(&buf, uint32(len(idx.Entries)))

	for i, e := range idx.Entries {
		if i > 0 && idx.Entries[i-1].Path >= e.Path {
			return nil, twigerr.Errorf(twigerr.ErrInvalidArgument, "encode index: entry %q out of order", e.Path)
		}
		if err := encodeEntry(&buf, f, e); err != nil {
			return nil, err
		}
	}

	sum, err := f.RawHash(f.HashBytes(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	buf.Write(sum)
	return buf.Bytes(), nil
}

func encodeEntry(buf *bytes.Buffer, f object.Format, e *Entry) error {
	if e.Path == "" {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "encode index: empty path")
	}
	raw, err := f.RawHash(e.Hash)
	if err != nil {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "encode index: %s: %v", e.Path, err)
	}
	if e.Stage > 3 {
		return twigerr.Errorf(twigerr.ErrInvalidArgument, "encode index: %s: stage %d out of range", e.Path, e.Stage)
	}

	writeTime(buf, e.CTime)
	writeTime(buf, e.MTime)
	writeUint32(buf, e.Dev)
	writeUint32(buf, e.Ino)
	writeUint32(buf, uint32(e.Mode))
	writeUint32(buf, e.UID)
	writeUint32(buf, e.GID)
	writeUint32(buf, e.Size)
	buf.Write(raw)

	nameLen := len(e.Path)
	if nameLen > nameMask {
		nameLen = nameMask
	}
	flags := uint16(nameLen) | uint16(e.Stage)<<stageShift
	if e.AssumeValid {
		flags |= flagAssumeValid
	}
	var fb [2]byte
	binary.BigEndian.PutUint16(fb[:], flags)
	buf.Write(fb[:])

	buf.WriteString(e.Path)
	entryLen := fixedSize(f) + len(e.Path)
	padded := (entryLen + 8) &^ 7
	buf.Write(make([]byte, padded-entryLen))
	return nil
}

// Decode parses an index file written in format f. Every structural problem
// is reported as CorruptIndex.
func Decode(f object.Format, data []byte) (*Index, error) {
	if f == "" {
		f = object.DefaultFormat
	}
	if len(data) < headerSize+f.Size() {
		return nil, corrupt("file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != signature {
		return nil, corrupt("bad signature %q", data[:4])
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != Version {
		return nil, corrupt("unsupported version %d", v)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	body := data[:len(data)-f.Size()]
	want, err := f.RawHash(f.HashBytes(body))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, data[len(body):]) {
		return nil, corrupt("checksum mismatch")
	}

	idx := &Index{Format: f}
	pos := headerSize
	for i := uint32(0); i < count; i++ {
		e, next, err := decodeEntry(f, body, pos)
		if err != nil {
			return nil, err
		}
		if n := len(idx.Entries); n > 0 && idx.Entries[n-1].Path >= e.Path {
			if idx.Entries[n-1].Path == e.Path {
				return nil, corrupt("duplicate entry %q", e.Path)
			}
			return nil, corrupt("entry %q out of order after %q", e.Path, idx.Entries[n-1].Path)
		}
		idx.Entries = append(idx.Entries, e)
		pos = next
	}

	for pos < len(body) {
		if len(body)-pos < 8 {
			return nil, corrupt("%d trailing bytes after entries", len(body)-pos)
		}
		size := binary.BigEndian.Uint32(body[pos+4 : pos+8])
		if uint64(len(body)-pos-8) < uint64(size) {
			return nil, corrupt("extension %q truncated", body[pos:pos+4])
		}
		pos += 8 + int(size)
	}
	return idx, nil
}

func decodeEntry(f object.Format, body []byte, start int) (*Entry, int, error) {
	fixed := fixedSize(f)
	if len(body)-start < fixed {
		if start >= len(body) {
			return nil, 0, corrupt("entry count exceeds entries present")
		}
		return nil, 0, corrupt("truncated entry at offset %d", start)
	}
	rec := body[start : start+fixed]
	u32 := func(off int) uint32 { return binary.BigEndian.Uint32(rec[off : off+4]) }

	hash, err := f.HashFromRaw(rec[statSize : statSize+f.Size()])
	if err != nil {
		return nil, 0, corrupt("%v", err)
	}
	flags := binary.BigEndian.Uint16(rec[statSize+f.Size():])
	if flags&flagExtended != 0 {
		return nil, 0, corrupt("extended flag set in a version 2 entry at offset %d", start)
	}

	mode := filemode.FileMode(u32(24))
	switch mode {
	case filemode.Regular, filemode.Deprecated, filemode.Executable, filemode.Symlink, filemode.Submodule:
	default:
		return nil, 0, corrupt("entry at offset %d has invalid mode %o", start, uint32(mode))
	}
	if mode == filemode.Deprecated {
		mode = filemode.Regular
	}

	nameStart := start + fixed
	nameLen := int(flags & nameMask)
	var nameEnd int
	if nameLen < nameMask {
		nameEnd = nameStart + nameLen
		if nameEnd >= len(body) || body[nameEnd] != 0 {
			return nil, 0, corrupt("entry at offset %d: unterminated path", start)
		}
	} else {
		if nameStart+nameMask > len(body) {
			return nil, 0, corrupt("entry at offset %d: truncated long path", start)
		}
		nul := bytes.IndexByte(body[nameStart+nameMask:], 0)
		if nul < 0 {
			return nil, 0, corrupt("entry at offset %d: unterminated long path", start)
		}
		nameEnd = nameStart + nameMask + nul
	}
	path := string(body[nameStart:nameEnd])
	if path == "" {
		return nil, 0, corrupt("entry at offset %d: empty path", start)
	}

	entryLen := fixed + len(path)
	next := start + (entryLen+8)&^7
	if next > len(body) {
		return nil, 0, corrupt("entry %q: truncated padding", path)
	}

	return &Entry{
		Path:        path,
		Hash:        hash,
		Mode:        mode,
		CTime:       readTime(rec[0:8]),
		MTime:       readTime(rec[8:16]),
		Dev:         u32(16),
		Ino:         u32(20),
		UID:         u32(28),
		GID:         u32(32),
		Size:        u32(36),
		AssumeValid: flags&flagAssumeValid != 0,
		Stage:       uint8((flags & stageMask) >> stageShift),
	}, next, nil
}

func corrupt(format string, args ...interface{}) error {
	return twigerr.Errorf(twigerr.ErrCorruptIndex, "index: "+format, args...)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	if t.IsZero() {
		writeUint32(buf, 0)
		writeUint32(buf, 0)
		return
	}
	writeUint32(buf, uint32(t.Unix()))
	writeUint32(buf, uint32(t.Nanosecond()))
}

func readTime(b []byte) time.Time {
	sec := binary.BigEndian.Uint32(b[0:4])
	nsec := binary.BigEndian.Uint32(b[4:8])
	if sec == 0 && nsec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64(nsec))
}
