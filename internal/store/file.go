package store

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/hpungsan/venueindex/internal/errors"
)

// File stores the snapshot as a single JSON document keyed by event id.
type File struct {
	path string
}

// NewFile returns a JSON document store at path. The file is created on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the document. A missing file yields (nil, nil).
func (f *File) Load() (*Snapshot, error) {
	file, err := openFileNoFollowRead(f.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewPersistence("load", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewPersistence("load", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, errors.NewPersistence("load", fmt.Errorf("corrupt catalog %s: %w", f.path, err))
	}
	snap.normalize()
	return snap, nil
}

// Save writes the document atomically.
func (f *File) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.NewPersistence("encode", err)
	}
	if err := WriteFileAtomic(f.path, data); err != nil {
		return errors.NewPersistence("save", err)
	}
	return nil
}

// Close is a no-op; the file is only held open during Load and Save.
func (f *File) Close() error { return nil }

// WriteFileAtomic writes data to a temp file next to path, then renames it
// into place. The previous file survives any failure.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := path + "." + uuid.NewString() + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("destination is a symlink: %s", path)
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				// Windows refuses to rename over an existing file.
				if rmErr := os.Remove(path); rmErr == nil {
					if err := os.Rename(tempPath, path); err == nil {
						success = true
						return nil
					}
				}
			}
		}
		return fmt.Errorf("failed to finalize write: %w", err)
	}

	success = true
	return nil
}
