package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/memory"
	"github.com/sutra-engine/sutra-storage/namespace"
	"github.com/sutra-engine/sutra-storage/server"
)

type fakeEmbeddings struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbeddings) Generate(ctx context.Context, text, model string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbeddings) GenerateBatch(ctx context.Context, texts []string, model string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out
}

func testMemory(t *testing.T) *memory.Memory {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr := namespace.New(ctx, namespace.Config{
		BasePath:          t.TempDir(),
		ReconcileInterval: time.Millisecond,
		MaxBatchSize:      1000,
		VectorDimension:   4,
	}, nil, nil)
	return mgr.Get(namespace.Default)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestPipelineLearnConceptStoresVectorAndSemantics(t *testing.T) {
	mem := testMemory(t)
	embeddings := &fakeEmbeddings{vector: []float32{1, 0, 0, 0}}
	p := New(embeddings, nil)

	id, err := p.LearnConcept(context.Background(), mem, "smoking causes lung damage", server.DefaultLearnOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, embeddings.calls)

	waitUntil(t, func() bool { return mem.Contains(id) })
	node, ok := mem.QueryConcept(id)
	require.True(t, ok)
	require.NotNil(t, node.Semantic)
	assert.Equal(t, concept.SemanticCausal, node.Semantic.Type)
}

func TestPipelineLearnConceptStoresExtractedAssociations(t *testing.T) {
	mem := testMemory(t)
	embeddings := &fakeEmbeddings{vector: []float32{1, 0, 0, 0}}
	p := New(embeddings, nil)

	id, err := p.LearnConcept(context.Background(), mem, "smoking causes lung damage", server.DefaultLearnOptions())
	require.NoError(t, err)

	waitUntil(t, func() bool { return len(mem.QueryNeighbors(id)) > 0 })
	neighbors := mem.QueryNeighbors(id)
	assert.NotEmpty(t, neighbors)
}

func TestPipelineLearnConceptSurvivesEmbeddingFailure(t *testing.T) {
	mem := testMemory(t)
	embeddings := &fakeEmbeddings{err: assertErr{}}
	p := New(embeddings, nil)

	id, err := p.LearnConcept(context.Background(), mem, "no embeddings today", server.DefaultLearnOptions())
	require.NoError(t, err)
	waitUntil(t, func() bool { return mem.Contains(id) })
}

type assertErr struct{}

func (assertErr) Error() string { return "embedding backend unreachable" }

func TestPipelineLearnBatchProducesOneIDPerContent(t *testing.T) {
	mem := testMemory(t)
	embeddings := &fakeEmbeddings{vector: []float32{0, 1, 0, 0}}
	p := New(embeddings, nil)

	ids, err := p.LearnBatch(context.Background(), mem, []string{"first fact", "second fact"}, server.DefaultLearnOptions())
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestPipelineSearchEmbedsQueryAndSearches(t *testing.T) {
	mem := testMemory(t)
	embeddings := &fakeEmbeddings{vector: []float32{1, 0, 0, 0}}
	p := New(embeddings, nil)

	id, err := p.LearnConcept(context.Background(), mem, "a searchable fact", server.DefaultLearnOptions())
	require.NoError(t, err)
	waitUntil(t, func() bool { return mem.HnswStats().NumVectors > 0 })

	results, err := p.Search(context.Background(), mem, "a searchable fact", 5)
	require.NoError(t, err)
	found := false
	for _, r := range results {
		if r.ID == id {
			found = true
		}
	}
	assert.True(t, found)
}
