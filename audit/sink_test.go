package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/writelog"
)

type fakeSink struct {
	records []Record
	closed  bool
}

func (f *fakeSink) Write(_ context.Context, rec Record) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestRecordFromEntryAddConcept(t *testing.T) {
	id := concept.NewIDFromContent([]byte("x"))
	e := writelog.Entry{Sequence: 7, Kind: writelog.KindAddConcept, ID: id, Content: []byte("hello")}

	rec := RecordFromEntry("tenant-a", e, time.Unix(100, 0))
	assert.NotEmpty(t, rec.RecordID)
	assert.Equal(t, "tenant-a", rec.Namespace)
	assert.Equal(t, uint64(7), rec.Sequence)
	assert.Equal(t, "add_concept", rec.Kind)
	assert.Equal(t, id.Hex(), rec.ConceptID)
	assert.Contains(t, rec.Detail, "content_len=5")
}

func TestRecordFromEntryAddAssociation(t *testing.T) {
	source := concept.NewIDFromContent([]byte("a"))
	target := concept.NewIDFromContent([]byte("b"))
	rec := concept.NewAssociationRecord(source, target, concept.Causal, 0.5)
	e := writelog.Entry{Kind: writelog.KindAddAssociation, Association: rec}

	out := RecordFromEntry("default", e, time.Now())
	assert.Equal(t, "add_association", out.Kind)
	assert.Equal(t, source.Hex(), out.ConceptID)
	assert.Contains(t, out.Detail, target.Hex())
	assert.Contains(t, out.Detail, "causal")
}

func TestFakeSinkReceivesWrites(t *testing.T) {
	sink := &fakeSink{}
	rec := Record{Namespace: "default", Sequence: 1, Kind: "add_concept"}
	require.NoError(t, sink.Write(context.Background(), rec))
	assert.Len(t, sink.records, 1)
	assert.NoError(t, sink.Close())
	assert.True(t, sink.closed)
}
