package storagefile

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sutra-engine/sutra-storage/sterr"
)

// FileBackend is the default, load-bearing Backend: atomic
// temp-write + fsync + rename, keeping the previous generation as a
// ".backup" file. Every backup it retires is additionally compressed
// into archive/ (see archive.go) so more than one generation back
// stays recoverable.
type FileBackend struct {
	dir        string
	archiveSeq uint64
}

// NewFileBackend roots a FileBackend at dir (one namespace's storage
// directory); dir is created on first write if absent.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (f *FileBackend) mainPath() string   { return filepath.Join(f.dir, "storage.dat") }
func (f *FileBackend) backupPath() string { return filepath.Join(f.dir, "storage.dat.backup") }
func (f *FileBackend) tempPath() string   { return filepath.Join(f.dir, "storage.dat.new") }

// ReadFull reads storage.dat, falling back to storage.dat.backup if
// the primary is missing or empty (e.g. a crash between rename steps).
func (f *FileBackend) ReadFull() ([]byte, error) {
	data, err := os.ReadFile(f.mainPath())
	if err == nil && len(data) > 0 {
		return data, nil
	}
	data, err = os.ReadFile(f.backupPath())
	if err != nil {
		return nil, sterr.Wrap(sterr.NotFound, "storagefile: no storage.dat or backup found", err)
	}
	return data, nil
}

// WriteAtomic writes data to storage.dat.new, fsyncs it, preserves the
// current storage.dat as storage.dat.backup, then renames the new file
// into place. A failure at any step leaves the prior storage.dat
// intact.
func (f *FileBackend) WriteAtomic(data []byte) error {
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: mkdir failed", err)
	}

	tmp, err := os.Create(f.tempPath())
	if err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: create temp file failed", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return sterr.Wrap(sterr.IoError, "storagefile: write temp file failed", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return sterr.Wrap(sterr.IoError, "storagefile: fsync temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: close temp file failed", err)
	}

	if stat, err := os.Stat(f.mainPath()); err == nil && stat.Size() > 0 {
		if err := f.ArchiveBackup(); err != nil {
			return err
		}
		if err := os.Rename(f.mainPath(), f.backupPath()); err != nil {
			return sterr.Wrap(sterr.IoError, "storagefile: backup rotation failed", err)
		}
	}

	if err := os.Rename(f.tempPath(), f.mainPath()); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: rename temp file failed", err)
	}
	return nil
}

// Backup returns the contents of storage.dat.backup.
func (f *FileBackend) Backup() ([]byte, error) {
	data, err := os.ReadFile(f.backupPath())
	if err != nil {
		return nil, sterr.Wrap(sterr.NotFound, "storagefile: no backup file", err)
	}
	return data, nil
}

var _ Backend = (*FileBackend)(nil)
