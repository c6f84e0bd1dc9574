package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `storage_path: /tmp/sutra`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sutra", cfg.StoragePath)
	assert.Equal(t, uint64(10), cfg.ReconcileIntervalMs)
	assert.Equal(t, 768, cfg.VectorDimension)
	assert.Equal(t, int64(10*1024*1024), cfg.ParsedMaxContentSize)
}

func TestLoadParsesHumanSizes(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
storage_path: /tmp/sutra
max_content_size: 5MiB
max_message_size: 50MiB
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024*1024), cfg.ParsedMaxContentSize)
	assert.Equal(t, int64(50*1024*1024), cfg.ParsedMaxMessageSize)
}

func TestLoadRejectsInvalidSize(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
storage_path: /tmp/sutra
max_content_size: not-a-size
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingStoragePath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
storage_path: ""
vector_dimension: 768
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestIntervalConvertsMillisecondsField(t *testing.T) {
	cfg := Default()
	cfg.ReconcileIntervalMs = 25
	assert.Equal(t, 25*time.Millisecond, cfg.Interval())
}

func TestWatcherNotifiesOnHotSwappableChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage_path: /tmp/sutra
reconcile_interval_ms: 10
`)
	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, nil)
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan HotSwappable, 1)
	w.OnChange(func(hs HotSwappable) { changed <- hs })

	writeConfig(t, dir, `
storage_path: /tmp/sutra
reconcile_interval_ms: 50
`)

	select {
	case hs := <-changed:
		assert.Equal(t, 50*time.Millisecond, hs.ReconcileInterval)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not notify of config change")
	}
}
