package storagefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveBackupNoopWhenNoBackupExists(t *testing.T) {
	fb := NewFileBackend(t.TempDir())
	require.NoError(t, fb.ArchiveBackup())

	names, err := fb.ListArchives()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestThirdWriteArchivesTheSupersededBackup(t *testing.T) {
	fb := NewFileBackend(t.TempDir())
	require.NoError(t, fb.WriteAtomic([]byte("generation-one")))
	require.NoError(t, fb.WriteAtomic([]byte("generation-two")))
	require.NoError(t, fb.WriteAtomic([]byte("generation-three")))

	names, err := fb.ListArchives()
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := fb.ReadArchive(names[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("generation-one"), data)

	backup, err := fb.Backup()
	require.NoError(t, err)
	assert.Equal(t, []byte("generation-two"), backup)
}

func TestArchivePruningKeepsOnlyMaxGenerations(t *testing.T) {
	fb := NewFileBackend(t.TempDir())
	require.NoError(t, fb.WriteAtomic([]byte("gen-0")))
	for i := 1; i <= MaxArchiveGenerations+3; i++ {
		require.NoError(t, fb.WriteAtomic([]byte("gen")))
	}

	names, err := fb.ListArchives()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(names), MaxArchiveGenerations)
}

func TestReadArchiveMissingNameErrors(t *testing.T) {
	fb := NewFileBackend(t.TempDir())
	_, err := fb.ReadArchive("does-not-exist.dat.xz")
	require.Error(t, err)
}
