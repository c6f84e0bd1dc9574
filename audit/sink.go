// Package audit provides best-effort relational mirrors of applied
// write-log entries: an operator querying Postgres or MySQL directly
// can see what the reconciler has applied without speaking the core's
// own wire protocol. A sink failure is logged and otherwise ignored —
// audit is observability, never a dependency of the write path.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sutra-engine/sutra-storage/writelog"
)

// Record is the flattened, storage-agnostic shape written to a sink
// for one applied write-log entry. RecordID is an opaque row identity
// independent of ConceptID: two audit rows about the same concept
// (e.g. a learn followed by a strength update) must not collide on a
// sink with a primary-key constraint.
type Record struct {
	RecordID  string
	Namespace string
	Sequence  uint64
	Kind      string
	ConceptID string
	Detail    string
	AppliedAt time.Time
}

// Sink persists Records best-effort; a Sink implementation must not
// block the reconciler for longer than a single call.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// RecordFromEntry flattens a writelog.Entry that the reconciler just
// applied into an audit Record.
func RecordFromEntry(namespace string, e writelog.Entry, appliedAt time.Time) Record {
	rec := Record{
		RecordID:  uuid.New().String(),
		Namespace: namespace,
		Sequence:  e.Sequence,
		Kind:      kindName(e.Kind),
		AppliedAt: appliedAt,
	}

	switch e.Kind {
	case writelog.KindAddConcept:
		rec.ConceptID = e.ID.Hex()
		rec.Detail = "content_len=" + strconv.Itoa(len(e.Content))
	case writelog.KindAddAssociation:
		rec.ConceptID = e.Association.Source.Hex()
		rec.Detail = "target=" + e.Association.Target.Hex() + " type=" + e.Association.Type.String()
	case writelog.KindUpdateStrength:
		rec.ConceptID = e.ID.Hex()
		rec.Detail = "strength=" + strconv.FormatFloat(float64(e.Strength), 'f', -1, 32)
	case writelog.KindRecordAccess:
		rec.ConceptID = e.ID.Hex()
	case writelog.KindDeleteConcept:
		rec.ConceptID = e.ID.Hex()
	case writelog.KindBatchMarker:
		rec.Detail = "batch marker"
	}
	return rec
}

func kindName(k writelog.EntryKind) string {
	switch k {
	case writelog.KindAddConcept:
		return "add_concept"
	case writelog.KindAddAssociation:
		return "add_association"
	case writelog.KindUpdateStrength:
		return "update_strength"
	case writelog.KindRecordAccess:
		return "record_access"
	case writelog.KindDeleteConcept:
		return "delete_concept"
	case writelog.KindBatchMarker:
		return "batch_marker"
	default:
		return "unknown"
	}
}
