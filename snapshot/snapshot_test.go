package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
)

func idFor(s string) concept.ID {
	return concept.NewIDFromContent([]byte(s))
}

func TestGraphSnapshotSetGetContains(t *testing.T) {
	s := NewEmpty()
	id := idFor("alpha")
	assert.False(t, s.Contains(id))

	node := concept.NewNode(id, []byte("alpha"), nil, 1, 1, 100)
	s.Set(node)

	assert.True(t, s.Contains(id))
	got, ok := s.GetConcept(id)
	require.True(t, ok)
	assert.Equal(t, []byte("alpha"), got.Content)
}

func TestGraphSnapshotCloneIsolation(t *testing.T) {
	base := NewEmpty()
	a := idFor("a")
	base.Set(concept.NewNode(a, []byte("a"), nil, 1, 1, 1))

	clone := base.Clone()
	b := idFor("b")
	clone.Set(concept.NewNode(b, []byte("b"), nil, 1, 1, 1))

	assert.True(t, clone.Contains(a))
	assert.True(t, clone.Contains(b))
	assert.True(t, base.Contains(a))
	assert.False(t, base.Contains(b), "mutating a clone must not affect the snapshot it was cloned from")
}

func TestGraphSnapshotNeighborsWeighted(t *testing.T) {
	s := NewEmpty()
	src := idFor("src")
	dst := idFor("dst")

	n := concept.NewNode(src, []byte("src"), nil, 1, 1, 1)
	rec := concept.NewAssociationRecord(src, dst, concept.Causal, 0.75)
	n = n.WithEdge(dst, rec)
	s.Set(n)
	s.Set(concept.NewNode(dst, []byte("dst"), nil, 1, 1, 1))

	neighbors := s.GetNeighbors(src)
	require.Len(t, neighbors, 1)
	assert.Equal(t, dst, neighbors[0])

	weighted := s.GetNeighborsWeighted(src)
	require.Len(t, weighted, 1)
	assert.Equal(t, dst, weighted[0].ID)
	assert.InDelta(t, 0.75, weighted[0].Confidence, 0.0001)
}

func TestGraphSnapshotFindPathDirect(t *testing.T) {
	s := NewEmpty()
	a, b, c := idFor("a"), idFor("b"), idFor("c")

	na := concept.NewNode(a, []byte("a"), nil, 1, 1, 1)
	na = na.WithEdge(b, concept.NewAssociationRecord(a, b, concept.Semantic, 1))
	s.Set(na)

	nb := concept.NewNode(b, []byte("b"), nil, 1, 1, 1)
	nb = nb.WithEdge(c, concept.NewAssociationRecord(b, c, concept.Semantic, 1))
	s.Set(nb)

	s.Set(concept.NewNode(c, []byte("c"), nil, 1, 1, 1))

	path, found := s.FindPath(a, c, 5)
	require.True(t, found)
	assert.Equal(t, []concept.ID{a, b, c}, path)
}

func TestGraphSnapshotFindPathRespectsMaxDepth(t *testing.T) {
	s := NewEmpty()
	a, b, c := idFor("a"), idFor("b"), idFor("c")

	na := concept.NewNode(a, []byte("a"), nil, 1, 1, 1)
	na = na.WithEdge(b, concept.NewAssociationRecord(a, b, concept.Semantic, 1))
	s.Set(na)

	nb := concept.NewNode(b, []byte("b"), nil, 1, 1, 1)
	nb = nb.WithEdge(c, concept.NewAssociationRecord(b, c, concept.Semantic, 1))
	s.Set(nb)

	s.Set(concept.NewNode(c, []byte("c"), nil, 1, 1, 1))

	_, found := s.FindPath(a, c, 1)
	assert.False(t, found, "path of length 2 must not be found with maxDepth 1")
}

func TestGraphSnapshotFindPathAllowsExactMaxDepth(t *testing.T) {
	s := NewEmpty()
	a, b, c := idFor("a"), idFor("b"), idFor("c")

	na := concept.NewNode(a, []byte("a"), nil, 1, 1, 1)
	na = na.WithEdge(b, concept.NewAssociationRecord(a, b, concept.Semantic, 1))
	s.Set(na)

	nb := concept.NewNode(b, []byte("b"), nil, 1, 1, 1)
	nb = nb.WithEdge(c, concept.NewAssociationRecord(b, c, concept.Semantic, 1))
	s.Set(nb)

	s.Set(concept.NewNode(c, []byte("c"), nil, 1, 1, 1))

	path, found := s.FindPath(a, c, 2)
	require.True(t, found, "a path exactly maxDepth edges long must still be found")
	assert.Equal(t, []concept.ID{a, b, c}, path)
}

func TestGraphSnapshotFindPathNoPath(t *testing.T) {
	s := NewEmpty()
	a, b := idFor("a"), idFor("b")
	s.Set(concept.NewNode(a, []byte("a"), nil, 1, 1, 1))
	s.Set(concept.NewNode(b, []byte("b"), nil, 1, 1, 1))

	_, found := s.FindPath(a, b, 10)
	assert.False(t, found)
}

func TestGraphSnapshotRecomputeCounts(t *testing.T) {
	s := NewEmpty()
	a, b := idFor("a"), idFor("b")
	na := concept.NewNode(a, []byte("a"), nil, 1, 1, 1)
	na = na.WithEdge(b, concept.NewAssociationRecord(a, b, concept.Semantic, 1))
	s.Set(na)
	s.Set(concept.NewNode(b, []byte("b"), nil, 1, 1, 1))

	s.RecomputeCounts()
	assert.Equal(t, 2, s.ConceptCount)
	assert.Equal(t, 1, s.EdgeCount)
}

func TestReadViewPublishLoad(t *testing.T) {
	rv := NewReadView()
	first := rv.Load()
	assert.Equal(t, 0, first.Len())

	next := NewEmpty()
	next.Set(concept.NewNode(idFor("x"), []byte("x"), nil, 1, 1, 1))
	rv.Publish(next)

	assert.Equal(t, 1, rv.Load().Len())
	assert.Equal(t, 0, first.Len(), "a previously loaded snapshot must not be mutated by a later publish")
}
