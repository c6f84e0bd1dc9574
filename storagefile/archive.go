package storagefile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/sutra-engine/sutra-storage/sterr"
)

const archiveDirName = "archive"

// MaxArchiveGenerations bounds how many compressed historical backups
// ArchiveBackup keeps before pruning the oldest.
const MaxArchiveGenerations = 10

func (f *FileBackend) archiveDir() string { return filepath.Join(f.dir, archiveDirName) }

// ArchiveBackup compresses the current storage.dat.backup into a
// timestamped .xz file under archive/ and prunes old generations. It
// is called by WriteAtomic just before a backup is overwritten, so an
// operator can still recover a generation further back than the single
// ".backup" file keeps.
func (f *FileBackend) ArchiveBackup() error {
	data, err := os.ReadFile(f.backupPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sterr.Wrap(sterr.IoError, "storagefile: read backup for archival failed", err)
	}

	if err := os.MkdirAll(f.archiveDir(), 0o750); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: mkdir archive failed", err)
	}

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return sterr.Wrap(sterr.Internal, "storagefile: xz writer init failed", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return sterr.Wrap(sterr.IoError, "storagefile: xz compress failed", err)
	}
	if err := w.Close(); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: xz finalize failed", err)
	}

	seq := atomic.AddUint64(&f.archiveSeq, 1)
	name := filepath.Join(f.archiveDir(), "storage-"+strconv.FormatInt(time.Now().UnixNano(), 10)+
		"-"+strconv.FormatUint(seq, 10)+".dat.xz")
	if err := os.WriteFile(name, buf.Bytes(), 0o640); err != nil {
		return sterr.Wrap(sterr.IoError, "storagefile: write archive failed", err)
	}

	return f.pruneArchives()
}

func (f *FileBackend) pruneArchives() error {
	names, err := f.ListArchives()
	if err != nil {
		return err
	}
	for len(names) > MaxArchiveGenerations {
		if err := os.Remove(filepath.Join(f.archiveDir(), names[0])); err != nil {
			return sterr.Wrap(sterr.IoError, "storagefile: prune archive failed", err)
		}
		names = names[1:]
	}
	return nil
}

// ReadArchive decompresses and returns the contents of one archived
// generation by name (see ListArchives).
func (f *FileBackend) ReadArchive(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.archiveDir(), name))
	if err != nil {
		return nil, sterr.Wrap(sterr.NotFound, "storagefile: archive not found", err)
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, sterr.Wrap(sterr.Internal, "storagefile: xz reader init failed", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, sterr.Wrap(sterr.IoError, "storagefile: xz decompress failed", err)
	}
	return out, nil
}

// ListArchives returns archived generation filenames, oldest first
// (names are timestamp-prefixed so lexical order is chronological).
func (f *FileBackend) ListArchives() ([]string, error) {
	entries, err := os.ReadDir(f.archiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sterr.Wrap(sterr.IoError, "storagefile: list archive dir failed", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
