package namespace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/reconciler"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/writelog"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		BasePath:           t.TempDir(),
		ReconcileInterval:  time.Millisecond,
		MaxBatchSize:       1000,
		VectorDimension:    4,
		DiskFlushThreshold: 0,
	}
}

func TestGetCreatesNamespaceOnFirstUse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := New(ctx, testConfig(t), nil, nil)

	mem := mgr.Get("tenant-a")
	require.NotNil(t, mem)
	assert.Equal(t, []string{"tenant-a"}, mgr.ListNamespaces())
}

func TestGetIsIdempotentPerNamespace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := New(ctx, testConfig(t), nil, nil)

	first := mgr.Get("tenant-a")
	second := mgr.Get("tenant-a")
	assert.Same(t, first, second)
}

func TestGetEmptyNamespaceFallsBackToDefault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := New(ctx, testConfig(t), nil, nil)

	mgr.Get("")
	assert.Equal(t, []string{Default}, mgr.ListNamespaces())
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := New(ctx, testConfig(t), nil, nil)

	a := mgr.Get("a")
	b := mgr.Get("b")

	id := concept.NewIDFromContent([]byte("shared-content"))
	_, err := a.LearnConcept(id, []byte("shared-content"), nil, 1, 1, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !a.Contains(id) {
		time.Sleep(time.Millisecond)
	}

	assert.True(t, a.Contains(id))
	assert.False(t, b.Contains(id), "a concept learned in one namespace must not appear in another")
}

func TestNewWithAuditWiresPerNamespaceAuditFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var requestedFor []string
	audit := func(ns string, basePath string) reconciler.AuditFunc {
		mu.Lock()
		requestedFor = append(requestedFor, ns)
		mu.Unlock()
		return func(writelog.Entry) error { return nil }
	}

	mgr := NewWithAudit(ctx, testConfig(t), nil, audit, nil)
	mgr.Get("tenant-a")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tenant-a"}, requestedFor)
}

func TestNewFullLoadsPersistedSnapshotBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := concept.NewIDFromContent([]byte("restored"))
	load := func(ns string, basePath string) (*snapshot.GraphSnapshot, error) {
		s := snapshot.NewEmpty()
		s.Set(concept.NewNode(id, []byte("restored"), nil, 1, 1, 1))
		s.RecomputeCounts()
		return s, nil
	}

	mgr := NewFull(ctx, testConfig(t), nil, nil, load, nil)
	mem := mgr.Get("tenant-a")

	// The loaded snapshot must be visible immediately, before any
	// reconcile cycle has had a chance to run.
	assert.True(t, mem.Contains(id))
}

func TestNewFullSurvivesLoadFuncError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	load := func(ns string, basePath string) (*snapshot.GraphSnapshot, error) {
		return nil, assert.AnError
	}

	mgr := NewFull(ctx, testConfig(t), nil, nil, load, nil)
	mem := mgr.Get("tenant-a")
	require.NotNil(t, mem)
}

func TestListNamespacesSorted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := New(ctx, testConfig(t), nil, nil)

	mgr.Get("zeta")
	mgr.Get("alpha")
	mgr.Get("mu")

	assert.Equal(t, []string{"alpha", "mu", "zeta"}, mgr.ListNamespaces())
}
