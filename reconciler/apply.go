package reconciler

import (
	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/writelog"
)

// Apply mutates next according to the application rules of a single
// write-log entry. It is called once per entry, strictly in sequence
// order, by the reconciler's single consumer goroutine, so no
// synchronization is needed here: next is a clone no other goroutine
// can see yet.
func Apply(next *snapshot.GraphSnapshot, e writelog.Entry) {
	switch e.Kind {
	case writelog.KindAddConcept:
		applyAddConcept(next, e)
	case writelog.KindAddAssociation:
		applyAddAssociation(next, e)
	case writelog.KindUpdateStrength:
		applyUpdateStrength(next, e)
	case writelog.KindRecordAccess:
		applyRecordAccess(next, e)
	case writelog.KindDeleteConcept:
		next.Delete(e.ID)
	case writelog.KindBatchMarker:
		// no-op, reserved for coarse-grained transactional boundaries.
	}
}

func applyAddConcept(next *snapshot.GraphSnapshot, e writelog.Entry) {
	existing, ok := next.GetConcept(e.ID)
	var node *concept.Node
	if ok {
		node = existing.Clone()
		node.Content = e.Content
		node.Vector = e.Vector
		node.Strength = e.Strength
		node.Confidence = e.Confidence
		node.Semantic = e.Semantic
	} else {
		node = concept.NewNode(e.ID, e.Content, e.Vector, e.Strength, e.Confidence, e.Timestamp)
		node.Semantic = e.Semantic
	}
	if len(e.Attributes) > 0 {
		node = node.MergeAttributes(e.Attributes)
	}
	next.Set(node)
}

func applyAddAssociation(next *snapshot.GraphSnapshot, e writelog.Entry) {
	rec := e.Association
	rec.Sequence = e.Sequence

	if source, ok := next.GetConcept(rec.Source); ok {
		next.Set(source.WithEdge(rec.Target, rec))
	}
	// The association record itself is not re-oriented for the target's
	// copy: (source, target) stays the canonical edge identity on both
	// endpoints, only the stored neighbor pointer differs.
	if target, ok := next.GetConcept(rec.Target); ok {
		next.Set(target.WithEdge(rec.Source, rec))
	}
}

func applyUpdateStrength(next *snapshot.GraphSnapshot, e writelog.Entry) {
	node, ok := next.GetConcept(e.ID)
	if !ok {
		return
	}
	updated := node.Clone()
	updated.Strength = e.Strength
	next.Set(updated)
}

func applyRecordAccess(next *snapshot.GraphSnapshot, e writelog.Entry) {
	node, ok := next.GetConcept(e.ID)
	if !ok {
		return
	}
	updated := node.Clone()
	updated.LastAccessed = e.Timestamp
	updated.AccessCount++
	next.Set(updated)
}
