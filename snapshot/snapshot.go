// Package snapshot implements the engine's read plane: an immutable,
// cheap-to-clone graph view backed by a copy-on-write B-tree, and the
// atomic-pointer ReadView the reconciler publishes new snapshots
// through.
package snapshot

import (
	"github.com/google/btree"

	"github.com/sutra-engine/sutra-storage/concept"
)

// conceptEntry is the B-tree element: a concept keyed by its id in
// byte-lexicographic order. Storing *concept.Node rather than the
// struct by value keeps ReplaceOrInsert cheap (a pointer swap) and
// matches the clone-and-replace mutation discipline used throughout
// the reconciler.
type conceptEntry struct {
	id   concept.ID
	node *concept.Node
}

func entryLess(a, b conceptEntry) bool {
	return a.id.Less(b.id)
}

// btreeDegree of 32 keeps node fetches cache-friendly without
// over-fragmenting small graphs.
const btreeDegree = 32

// GraphSnapshot is an immutable view of the concept graph at one
// reconcile sequence number. Snapshots are never mutated in place: the
// reconciler always Clones the current snapshot before applying a
// batch, which is why a Snapshot held by a reader stays self-consistent
// even as newer snapshots are published.
type GraphSnapshot struct {
	concepts     *btree.BTreeG[conceptEntry]
	Sequence     uint64
	Timestamp    uint64 // microseconds
	ConceptCount int
	EdgeCount    int
}

// NewEmpty returns the zero snapshot: sequence 0, no concepts.
func NewEmpty() *GraphSnapshot {
	return &GraphSnapshot{
		concepts: btree.NewG(btreeDegree, entryLess),
	}
}

// Clone returns a new GraphSnapshot sharing structure with s via the
// B-tree's O(1) copy-on-write Clone; subsequent ReplaceOrInsert/Delete
// calls on the clone path-copy only the touched nodes, so reconciling a
// batch costs work proportional to the batch, not to the whole graph.
func (s *GraphSnapshot) Clone() *GraphSnapshot {
	return &GraphSnapshot{
		concepts:     s.concepts.Clone(),
		Sequence:     s.Sequence,
		Timestamp:    s.Timestamp,
		ConceptCount: s.ConceptCount,
		EdgeCount:    s.EdgeCount,
	}
}

// GetConcept returns the node stored under id, if any.
func (s *GraphSnapshot) GetConcept(id concept.ID) (*concept.Node, bool) {
	e, ok := s.concepts.Get(conceptEntry{id: id})
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Contains reports whether id exists in the snapshot.
func (s *GraphSnapshot) Contains(id concept.ID) bool {
	_, ok := s.GetConcept(id)
	return ok
}

// Set stores node under node.ID, replacing any existing entry. Callers
// must pass a node that is not shared with any other snapshot's
// mutation path (i.e. always a fresh Clone()/WithEdge() result).
func (s *GraphSnapshot) Set(node *concept.Node) {
	s.concepts.ReplaceOrInsert(conceptEntry{id: node.ID, node: node})
}

// Delete removes id from the snapshot, tolerating dangling references:
// back-edges recorded on surviving neighbors are left untouched.
func (s *GraphSnapshot) Delete(id concept.ID) {
	s.concepts.Delete(conceptEntry{id: id})
}

// Len returns the number of concepts currently stored.
func (s *GraphSnapshot) Len() int {
	return s.concepts.Len()
}

// GetNeighbors returns the outgoing neighbor ids of id, or nil if id is
// unknown.
func (s *GraphSnapshot) GetNeighbors(id concept.ID) []concept.ID {
	node, ok := s.GetConcept(id)
	if !ok {
		return nil
	}
	return node.Neighbors
}

// WeightedNeighbor pairs a neighbor id with its association confidence.
type WeightedNeighbor struct {
	ID         concept.ID
	Confidence float32
}

// GetNeighborsWeighted returns id's neighbors paired with the
// confidence of the association recorded at the same index.
func (s *GraphSnapshot) GetNeighborsWeighted(id concept.ID) []WeightedNeighbor {
	node, ok := s.GetConcept(id)
	if !ok {
		return nil
	}
	out := make([]WeightedNeighbor, 0, len(node.Neighbors))
	for i, nb := range node.Neighbors {
		conf := float32(0)
		if i < len(node.Associations) {
			conf = node.Associations[i].Confidence
		}
		out = append(out, WeightedNeighbor{ID: nb, Confidence: conf})
	}
	return out
}

// FindPath runs a breadth-first search over outgoing neighbors from
// start to end, terminating on the first hit and tie-broken by
// insertion order (the order neighbors were appended in), bounded by
// maxDepth edges. It returns (nil, false) if no path within maxDepth
// exists.
func (s *GraphSnapshot) FindPath(start, end concept.ID, maxDepth int) ([]concept.ID, bool) {
	if start == end {
		return []concept.ID{start}, true
	}
	if !s.Contains(start) {
		return nil, false
	}

	type frame struct {
		id   concept.ID
		path []concept.ID
	}

	visited := map[concept.ID]struct{}{start: {}}
	queue := []frame{{id: start, path: []concept.ID{start}}}

	for depth := 0; len(queue) > 0 && depth <= maxDepth; depth++ {
		next := make([]frame, 0, len(queue))
		for _, f := range queue {
			if len(f.path)-1 >= maxDepth {
				continue
			}
			for _, nb := range s.GetNeighbors(f.id) {
				if nb == end {
					path := make([]concept.ID, len(f.path)+1)
					copy(path, f.path)
					path[len(f.path)] = nb
					return path, true
				}
				if _, seen := visited[nb]; seen {
					continue
				}
				visited[nb] = struct{}{}
				path := make([]concept.ID, len(f.path)+1)
				copy(path, f.path)
				path[len(f.path)] = nb
				next = append(next, frame{id: nb, path: path})
			}
		}
		queue = next
	}
	return nil, false
}

// Ascend iterates every concept in snapshot order (id ascending),
// stopping early if fn returns false. It is the iteration order
// guaranteed for QueryBySemantic results.
func (s *GraphSnapshot) Ascend(fn func(node *concept.Node) bool) {
	s.concepts.Ascend(func(e conceptEntry) bool {
		return fn(e.node)
	})
}

// RecomputeCounts recalculates ConceptCount/EdgeCount from the current
// B-tree contents, restoring the invariant
// concept_count == |concepts| and edge_count == sum(len(neighbors)).
func (s *GraphSnapshot) RecomputeCounts() {
	concepts := 0
	edges := 0
	s.concepts.Ascend(func(e conceptEntry) bool {
		concepts++
		edges += len(e.node.Neighbors)
		return true
	})
	s.ConceptCount = concepts
	s.EdgeCount = edges
}
