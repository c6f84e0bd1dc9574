package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/hnsw"
	"github.com/sutra-engine/sutra-storage/reconciler"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/writelog"
)

func newSnapshotWithNode(id concept.ID, vector []float32) *snapshot.GraphSnapshot {
	s := snapshot.NewEmpty()
	s.Set(concept.NewNode(id, []byte("preloaded"), vector, 1, 1, 1))
	s.RecomputeCounts()
	return s
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := New("default", 0, reconciler.Config{Interval: time.Millisecond, MaxBatch: 1000}, hnsw.DefaultConfig(4), t.TempDir(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		m.Stop()
	})
	m.Start(ctx)
	return m
}

func waitUntil(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestLearnConceptBecomesVisibleAfterReconcile(t *testing.T) {
	m := newTestMemory(t)
	id := concept.NewIDFromContent([]byte("a"))

	_, err := m.LearnConcept(id, []byte("hello"), nil, 1, 1, nil)
	require.NoError(t, err)

	waitUntil(t, func() bool { return m.Contains(id) })

	node, ok := m.QueryConcept(id)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), node.Content)
}

func TestLearnConceptRejectsOversizedContent(t *testing.T) {
	m := newTestMemory(t)
	id := concept.NewIDFromContent([]byte("big"))
	oversized := make([]byte, concept.MaxContentBytes+1)

	_, err := m.LearnConcept(id, oversized, nil, 1, 1, nil)
	require.Error(t, err)
}

func TestLearnAssociationCreatesBidirectionalEdge(t *testing.T) {
	m := newTestMemory(t)
	a := concept.NewIDFromContent([]byte("a"))
	b := concept.NewIDFromContent([]byte("b"))

	_, _ = m.LearnConcept(a, []byte("a"), nil, 1, 1, nil)
	_, _ = m.LearnConcept(b, []byte("b"), nil, 1, 1, nil)
	_, err := m.LearnAssociation(a, b, concept.Semantic, 0.8)
	require.NoError(t, err)

	waitUntil(t, func() bool { return len(m.QueryNeighbors(a)) == 1 && len(m.QueryNeighbors(b)) == 1 })
}

func TestVectorSearchOnEmptyIndexReturnsEmpty(t *testing.T) {
	m := newTestMemory(t)
	results := m.VectorSearch([]float32{0.1, 0.2, 0.3, 0.4}, 5, 50)
	assert.Empty(t, results)
}

func TestClearResetsSnapshotAndDrainsQueuedWrites(t *testing.T) {
	m := newTestMemory(t)
	id := concept.NewIDFromContent([]byte("a"))
	_, _ = m.LearnConcept(id, []byte("a"), nil, 1, 1, nil)
	waitUntil(t, func() bool { return m.Contains(id) })

	m.Clear()
	assert.False(t, m.Contains(id))
	assert.Equal(t, 0, m.GetSnapshot().Len())
}

func TestStatsAggregatesCounters(t *testing.T) {
	m := newTestMemory(t)
	id := concept.NewIDFromContent([]byte("a"))
	_, _ = m.LearnConcept(id, []byte("a"), nil, 1, 1, nil)
	waitUntil(t, func() bool { return m.Contains(id) })

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.WriteLog.Written)
	assert.GreaterOrEqual(t, stats.Reconciler.Cycles, uint64(1))
	assert.Equal(t, 1, stats.ConceptCount)
}

func TestLoadSnapshotPublishesStateAndRebuildsVectorIndex(t *testing.T) {
	dir := t.TempDir()
	m := New("default", 0, reconciler.Config{Interval: time.Millisecond, MaxBatch: 1000}, hnsw.DefaultConfig(4), dir, nil, nil)

	id := concept.NewIDFromContent([]byte("preloaded"))
	vec := []float32{0.1, 0.2, 0.3, 0.4}
	snap := newSnapshotWithNode(id, vec)

	require.NoError(t, m.LoadSnapshot(snap))

	assert.True(t, m.Contains(id))
	results := m.VectorSearch(vec, 1, 50)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
}

func TestSetAuditReceivesAppliedEntries(t *testing.T) {
	m := newTestMemory(t)

	var mu sync.Mutex
	var kinds []writelog.EntryKind
	m.SetAudit(func(e writelog.Entry) error {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
		return nil
	})

	id := concept.NewIDFromContent([]byte("audited"))
	_, err := m.LearnConcept(id, []byte("audited"), nil, 1, 1, nil)
	require.NoError(t, err)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, writelog.KindAddConcept)
}
