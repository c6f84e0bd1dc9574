package writelog

import "github.com/sutra-engine/sutra-storage/concept"

// EntryKind tags the variant stored in an Entry.
type EntryKind uint8

const (
	KindAddConcept EntryKind = iota
	KindAddAssociation
	KindUpdateStrength
	KindRecordAccess
	KindDeleteConcept
	KindBatchMarker
)

// Entry is a tagged write-log record. Only the fields relevant to Kind
// are populated; this mirrors the original Rust engine's enum variants
// without Go's lack of sum types forcing a separate struct per kind,
// which would complicate the single append-order queue.
type Entry struct {
	Sequence uint64
	Kind     EntryKind

	// AddConcept
	ID         concept.ID
	Content    []byte
	Vector     []float32
	Strength   float32
	Confidence float32
	Attributes map[string]string
	Semantic   *concept.SemanticMetadata
	Timestamp  uint64 // seconds for AddConcept.Created; micros for RecordAccess

	// AddAssociation
	Association concept.AssociationRecord
}
