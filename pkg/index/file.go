package index

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/twigerr"
)

// Load reads the index file at path. A missing file is an empty index.
func Load(path string, f object.Format) (*Index, error) {
	r, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(f), nil
		}
		return nil, twigerr.Errorf(twigerr.ErrIO, "load index: %v", err)
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && len(data) > 0 {
		return nil, twigerr.Errorf(twigerr.ErrIO, "load index: read: %v", err)
	}
	return Decode(f, data)
}

// Save atomically replaces the index file at path with idx.
func Save(path string, idx *Index) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}

	// Atomic write via temp file + rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-tmp-*")
	if err != nil {
		return twigerr.Errorf(twigerr.ErrIO, "save index: tmpfile: %v", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "save index: write: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "save index: sync: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "save index: close: %v", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return twigerr.Errorf(twigerr.ErrIO, "save index: rename: %v", err)
	}
	return nil
}
