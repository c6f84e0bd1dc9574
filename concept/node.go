package concept

// Reserved attribute keys a learner may set on a concept; the core
// treats these as opaque strings like any other attribute, but callers
// across the corpus agree on their meaning.
const (
	AttrSource    = "sutra:source"
	AttrNamespace = "sutra:namespace"
	AttrCategory  = "sutra:category"
	AttrGoalData  = "sutra:goal_data"
)

// MaxContentBytes is the ingest-time upper bound on a concept's
// content, enforced by the server before it ever reaches a write.
const MaxContentBytes = 10 * 1024 * 1024

// MaxVectorDimension is the absolute ceiling on an embedding vector's
// length, independent of any namespace's configured dimension.
const MaxVectorDimension = 2048

// Node is the value object stored in a GraphSnapshot for one concept.
// It is always copied before mutation (see snapshot.GraphSnapshot) so
// that readers holding an older snapshot never observe a half-written
// node.
type Node struct {
	ID            ID
	Content       []byte
	Vector        []float32 // nil if this concept has no embedding
	Strength      float32
	Confidence    float32
	AccessCount   uint32
	LastAccessed  uint64 // microseconds
	Created       uint64 // seconds
	Neighbors     []ID
	Associations  []AssociationRecord // Associations[i] pairs with Neighbors[i]
	Attributes    map[string]string
	Semantic      *SemanticMetadata
}

// NewNode builds a fresh node with empty neighbor/association lists,
// the state AddConcept reconciliation produces for an unseen id.
func NewNode(id ID, content []byte, vector []float32, strength, confidence float32, created uint64) *Node {
	return &Node{
		ID:         id,
		Content:    content,
		Vector:     vector,
		Strength:   strength,
		Confidence: confidence,
		Created:    created,
	}
}

// Clone returns a shallow value copy of n suitable for the
// clone-and-replace mutation pattern the reconciler uses against the
// immutable concept map: callers that intend to append to Neighbors or
// Associations must allocate a new backing slice rather than mutate
// the clone's slices in place, since the original node may still be
// visible through an older snapshot.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// WithEdge returns a copy of n with (target, record) appended to its
// neighbor/association lists. The original n is left untouched.
func (n *Node) WithEdge(target ID, record AssociationRecord) *Node {
	c := n.Clone()
	neighbors := make([]ID, len(n.Neighbors), len(n.Neighbors)+1)
	copy(neighbors, n.Neighbors)
	c.Neighbors = append(neighbors, target)

	associations := make([]AssociationRecord, len(n.Associations), len(n.Associations)+1)
	copy(associations, n.Associations)
	c.Associations = append(associations, record)
	return c
}

// WeightedNeighbors pairs each neighbor with the confidence of the
// association recorded at the same index.
func (n *Node) WeightedNeighbors() []struct {
	ID         ID
	Confidence float32
} {
	out := make([]struct {
		ID         ID
		Confidence float32
	}, 0, len(n.Neighbors))
	for i, nb := range n.Neighbors {
		conf := float32(0)
		if i < len(n.Associations) {
			conf = n.Associations[i].Confidence
		}
		out = append(out, struct {
			ID         ID
			Confidence float32
		}{nb, conf})
	}
	return out
}

// MergeAttributes returns a copy of n with extra merged over its
// existing attributes (extra wins on key collision); used by
// AddConcept reconciliation when a write entry carries attributes.
func (n *Node) MergeAttributes(extra map[string]string) *Node {
	if len(extra) == 0 {
		return n
	}
	c := n.Clone()
	merged := make(map[string]string, len(n.Attributes)+len(extra))
	for k, v := range n.Attributes {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	c.Attributes = merged
	return c
}
