package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDFromContentIsDeterministic(t *testing.T) {
	a := NewIDFromContent([]byte("hello world"))
	b := NewIDFromContent([]byte("hello world"))
	c := NewIDFromContent([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIDHexRoundTrip(t *testing.T) {
	id := NewIDFromContent([]byte("round trip"))
	parsed, err := IDFromHex(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDLessTotalOrder(t *testing.T) {
	a := ID{0x01}
	b := ID{0x02}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestIDIsZero(t *testing.T) {
	var zero ID
	assert.True(t, zero.IsZero())
	assert.False(t, NewIDFromContent([]byte("x")).IsZero())
}

func TestNodeWithEdgeDoesNotMutateOriginal(t *testing.T) {
	id := NewIDFromContent([]byte("a"))
	target := NewIDFromContent([]byte("b"))
	n := NewNode(id, []byte("a"), nil, 1, 1, 1)

	rec := NewAssociationRecord(id, target, Semantic, 0.9)
	updated := n.WithEdge(target, rec)

	assert.Empty(t, n.Neighbors, "original node must be unmodified")
	require.Len(t, updated.Neighbors, 1)
	assert.Equal(t, target, updated.Neighbors[0])
	assert.Equal(t, rec, updated.Associations[0])
}

func TestNodeWeightedNeighbors(t *testing.T) {
	id := NewIDFromContent([]byte("a"))
	t1 := NewIDFromContent([]byte("b"))
	t2 := NewIDFromContent([]byte("c"))

	n := NewNode(id, []byte("a"), nil, 1, 1, 1)
	n = n.WithEdge(t1, NewAssociationRecord(id, t1, Semantic, 0.5))
	n = n.WithEdge(t2, NewAssociationRecord(id, t2, Causal, 0.8))

	weighted := n.WeightedNeighbors()
	require.Len(t, weighted, 2)
	assert.Equal(t, t1, weighted[0].ID)
	assert.InDelta(t, 0.5, weighted[0].Confidence, 0.0001)
	assert.Equal(t, t2, weighted[1].ID)
	assert.InDelta(t, 0.8, weighted[1].Confidence, 0.0001)
}

func TestNodeMergeAttributesExtraWins(t *testing.T) {
	id := NewIDFromContent([]byte("a"))
	n := NewNode(id, []byte("a"), nil, 1, 1, 1)
	n.Attributes = map[string]string{"k1": "v1", "k2": "v2"}

	merged := n.MergeAttributes(map[string]string{"k2": "overridden", "k3": "v3"})

	assert.Equal(t, "v1", merged.Attributes["k1"])
	assert.Equal(t, "overridden", merged.Attributes["k2"])
	assert.Equal(t, "v3", merged.Attributes["k3"])
	assert.Equal(t, "v2", n.Attributes["k2"], "original attributes must be untouched")
}

func TestAssociationTypeFromByteDefaultsToSemanticForUnknown(t *testing.T) {
	assert.Equal(t, Semantic, AssociationTypeFromByte(255))
	assert.Equal(t, Causal, AssociationTypeFromByte(byte(Causal)))
}

func TestNowMicrosAndSecondsAreConsistent(t *testing.T) {
	micros := NowMicros()
	seconds := NowSeconds()
	assert.Greater(t, micros, uint64(0))
	assert.Greater(t, seconds, uint64(0))
	assert.InDelta(t, float64(seconds), float64(micros)/1_000_000, 2)
}
