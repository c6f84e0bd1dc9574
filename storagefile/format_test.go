package storagefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/snapshot"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := snapshot.NewEmpty()

	a := concept.NewNode(concept.NewIDFromContent([]byte("a")), []byte("hello"), []float32{0.1, 0.2, 0.3}, 1, 0.9, 100)
	b := concept.NewNode(concept.NewIDFromContent([]byte("b")), []byte("world"), nil, 0.5, 0.8, 200)
	s.Set(a)
	s.Set(b)

	rec := concept.NewAssociationRecord(a.ID, b.ID, concept.Causal, 0.75)
	aEdge, _ := s.GetConcept(a.ID)
	s.Set(aEdge.WithEdge(b.ID, rec))
	bEdge, _ := s.GetConcept(b.ID)
	s.Set(bEdge.WithEdge(a.ID, rec))

	s.RecomputeCounts()
	s.Timestamp = 12345

	data, err := Encode(s)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 2, decoded.Len())
	assert.Equal(t, uint64(12345), decoded.Timestamp)

	gotA, ok := decoded.GetConcept(a.ID)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), gotA.Content)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, gotA.Vector)
	assert.Equal(t, float32(0.9), gotA.Confidence)
	require.Len(t, gotA.Associations, 1)
	assert.Equal(t, b.ID, gotA.Associations[0].Target)
	assert.Equal(t, a.ID, gotA.Associations[0].Source)
	// v2 does not persist edge type; every reconstructed edge defaults
	// to Semantic regardless of the type recorded before encoding.
	assert.Equal(t, concept.Semantic, gotA.Associations[0].Type)

	gotB, ok := decoded.GetConcept(b.ID)
	require.True(t, ok)
	require.Len(t, gotB.Associations, 1)
	assert.Equal(t, a.ID, gotB.Associations[0].Source)
	assert.Equal(t, b.ID, gotB.Associations[0].Target)
	assert.Nil(t, gotB.Vector)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data[0:8], "GARBAGE!")
	_, err := Decode(data)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	s := snapshot.NewEmpty()
	data, err := Encode(s)
	require.NoError(t, err)
	data[8] = 99 // corrupt version field
	_, err = Decode(data)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTripsDuplicateAssociations(t *testing.T) {
	s := snapshot.NewEmpty()

	a := concept.NewNode(concept.NewIDFromContent([]byte("a")), []byte("hello"), nil, 1, 0.9, 100)
	b := concept.NewNode(concept.NewIDFromContent([]byte("b")), []byte("world"), nil, 0.5, 0.8, 200)
	s.Set(a)
	s.Set(b)

	// Two distinct LearnAssociation calls for the same (source, target)
	// pair, as applyAddAssociation would produce with distinct write-log
	// sequences.
	first := concept.NewAssociationRecord(a.ID, b.ID, concept.Causal, 0.75)
	first.Sequence = 1
	second := concept.NewAssociationRecord(a.ID, b.ID, concept.Causal, 0.5)
	second.Sequence = 2

	aNode, _ := s.GetConcept(a.ID)
	aNode = aNode.WithEdge(b.ID, first)
	aNode = aNode.WithEdge(b.ID, second)
	s.Set(aNode)

	bNode, _ := s.GetConcept(b.ID)
	bNode = bNode.WithEdge(a.ID, first)
	bNode = bNode.WithEdge(a.ID, second)
	s.Set(bNode)

	s.RecomputeCounts()

	data, err := Encode(s)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	gotA, ok := decoded.GetConcept(a.ID)
	require.True(t, ok)
	require.Len(t, gotA.Associations, 2, "two distinct LearnAssociation calls must round-trip as two edges")

	gotB, ok := decoded.GetConcept(b.ID)
	require.True(t, ok)
	require.Len(t, gotB.Associations, 2)
}

func TestEncodeEmptySnapshot(t *testing.T) {
	s := snapshot.NewEmpty()
	data, err := Encode(s)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())
}
