// Package server implements the TCP front end: a byte-sniffing listener
// that speaks a binary, length-prefixed msgpack protocol to programs and
// a line-oriented text protocol to a human typing at a terminal, and
// dispatches both onto a namespace.Manager.
package server

import (
	"fmt"

	"github.com/sutra-engine/sutra-storage/concept"
)

// Size and rate limits enforced before a request is ever dispatched,
// matching the documented ceilings of the engine this protocol fronts.
const (
	MaxContentSize  = 10 * 1024 * 1024
	MaxEmbeddingDim = 2048
	MaxBatchSize    = 1000
	MaxMessageSize  = 100 * 1024 * 1024
	MaxPathDepth    = 20
	MaxSearchK      = 1000
)

// LearnOptions controls the optional enrichment steps LearnConceptV2 and
// LearnBatch run through the learning pipeline before a concept is
// written.
type LearnOptions struct {
	GenerateEmbedding         bool    `msgpack:"generate_embedding" json:"generate_embedding"`
	EmbeddingModel            string  `msgpack:"embedding_model,omitempty" json:"embedding_model,omitempty"`
	ExtractAssociations       bool    `msgpack:"extract_associations" json:"extract_associations"`
	MinAssociationConfidence  float32 `msgpack:"min_association_confidence" json:"min_association_confidence"`
	MaxAssociationsPerConcept int     `msgpack:"max_associations_per_concept" json:"max_associations_per_concept"`
	Strength                  float32 `msgpack:"strength" json:"strength"`
	Confidence                float32 `msgpack:"confidence" json:"confidence"`
}

// DefaultLearnOptions mirrors the pipeline's own defaults so a client
// that omits the field entirely still gets sane enrichment behavior.
func DefaultLearnOptions() LearnOptions {
	return LearnOptions{
		GenerateEmbedding:         true,
		ExtractAssociations:       true,
		MinAssociationConfidence:  0.5,
		MaxAssociationsPerConcept: 5,
		Strength:                  1.0,
		Confidence:                1.0,
	}
}

// SemanticFilter is the wire shape of semantic.Filter: plain strings and
// pointers instead of the internal enum types, resolved to a
// semantic.Filter by resolveFilter before a query runs.
type SemanticFilter struct {
	SemanticType      string   `msgpack:"semantic_type,omitempty" json:"semantic_type,omitempty"`
	DomainContext     string   `msgpack:"domain_context,omitempty" json:"domain_context,omitempty"`
	TemporalAfter     *int64   `msgpack:"temporal_after,omitempty" json:"temporal_after,omitempty"`
	TemporalBefore    *int64   `msgpack:"temporal_before,omitempty" json:"temporal_before,omitempty"`
	HasCausalRelation bool     `msgpack:"has_causal_relation,omitempty" json:"has_causal_relation,omitempty"`
	MinConfidence     float32  `msgpack:"min_confidence,omitempty" json:"min_confidence,omitempty"`
	RequiredTerms     []string `msgpack:"required_terms,omitempty" json:"required_terms,omitempty"`
}

// SemanticPath is one filtered-traversal result on the wire.
type SemanticPath struct {
	Concepts            []string       `msgpack:"concepts" json:"concepts"`
	Confidence          float32        `msgpack:"confidence" json:"confidence"`
	TypeDistribution    map[string]int `msgpack:"type_distribution" json:"type_distribution"`
	Domains             []string       `msgpack:"domains" json:"domains"`
	IsTemporallyOrdered bool           `msgpack:"is_temporally_ordered" json:"is_temporally_ordered"`
}

// ConceptWithSemantic is one row of a QueryBySemantic result.
type ConceptWithSemantic struct {
	ConceptID    string  `msgpack:"concept_id" json:"concept_id"`
	Content      string  `msgpack:"content" json:"content"`
	SemanticType string  `msgpack:"semantic_type" json:"semantic_type"`
	Domain       string  `msgpack:"domain" json:"domain"`
	Confidence   float32 `msgpack:"confidence" json:"confidence"`
}

// RecentItem is one row of a ListRecent result.
type RecentItem struct {
	ID             string            `msgpack:"id" json:"id"`
	ContentPreview string            `msgpack:"content_preview" json:"content_preview"`
	Created        uint64            `msgpack:"created" json:"created"`
	Attributes     map[string]string `msgpack:"attributes" json:"attributes"`
}

// ScoredID pairs a concept id with a similarity or relevance score,
// mirroring the (String, f32) tuples the original wire format used.
type ScoredID struct {
	ID    string  `msgpack:"id" json:"id"`
	Score float32 `msgpack:"score" json:"score"`
}

// ContradictionMsg is one row of a FindContradictions result.
type ContradictionMsg struct {
	A      string `msgpack:"a" json:"a"`
	B      string `msgpack:"b" json:"b"`
	Reason string `msgpack:"reason" json:"reason"`
}

// Request is the single flattened envelope both binary and text clients
// send. Type selects which of the remaining fields are meaningful;
// unused fields are left zero-valued and ignored by the handler.
type Request struct {
	Type string `msgpack:"type" json:"type"`

	Namespace string `msgpack:"namespace,omitempty" json:"namespace,omitempty"`

	Content  string       `msgpack:"content,omitempty" json:"content,omitempty"`
	Contents []string     `msgpack:"contents,omitempty" json:"contents,omitempty"`
	Options  LearnOptions `msgpack:"options,omitempty" json:"options,omitempty"`

	ID         string            `msgpack:"id,omitempty" json:"id,omitempty"`
	ConceptID  string            `msgpack:"concept_id,omitempty" json:"concept_id,omitempty"`
	Embedding  []float32         `msgpack:"embedding,omitempty" json:"embedding,omitempty"`
	Metadata   map[string]string `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
	Strength   float32           `msgpack:"strength,omitempty" json:"strength,omitempty"`
	Confidence float32           `msgpack:"confidence,omitempty" json:"confidence,omitempty"`

	SourceID  string `msgpack:"source_id,omitempty" json:"source_id,omitempty"`
	TargetID  string `msgpack:"target_id,omitempty" json:"target_id,omitempty"`
	AssocType uint32 `msgpack:"assoc_type,omitempty" json:"assoc_type,omitempty"`

	StartID  string `msgpack:"start_id,omitempty" json:"start_id,omitempty"`
	EndID    string `msgpack:"end_id,omitempty" json:"end_id,omitempty"`
	MaxDepth uint32 `msgpack:"max_depth,omitempty" json:"max_depth,omitempty"`

	QueryVector []float32 `msgpack:"query_vector,omitempty" json:"query_vector,omitempty"`
	K           uint32    `msgpack:"k,omitempty" json:"k,omitempty"`
	EfSearch    uint32    `msgpack:"ef_search,omitempty" json:"ef_search,omitempty"`

	Limit uint32 `msgpack:"limit,omitempty" json:"limit,omitempty"`

	Filter   SemanticFilter `msgpack:"filter,omitempty" json:"filter,omitempty"`
	MaxPaths uint32         `msgpack:"max_paths,omitempty" json:"max_paths,omitempty"`

	Domain    string `msgpack:"domain,omitempty" json:"domain,omitempty"`
	StartTime int64  `msgpack:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime   int64  `msgpack:"end_time,omitempty" json:"end_time,omitempty"`

	CausalType string `msgpack:"causal_type,omitempty" json:"causal_type,omitempty"`
	Query      string `msgpack:"query,omitempty" json:"query,omitempty"`
}

// Response is the single flattened envelope every reply is encoded as.
// Only the fields relevant to the originating request's Type are set.
type Response struct {
	Type string `msgpack:"type" json:"type"`

	ConceptID  string   `msgpack:"concept_id,omitempty" json:"concept_id,omitempty"`
	ConceptIDs []string `msgpack:"concept_ids,omitempty" json:"concept_ids,omitempty"`
	Sequence   uint64   `msgpack:"sequence,omitempty" json:"sequence,omitempty"`
	ID         string   `msgpack:"id,omitempty" json:"id,omitempty"`
	Namespace  string   `msgpack:"namespace,omitempty" json:"namespace,omitempty"`

	Found      bool              `msgpack:"found,omitempty" json:"found"`
	Content    string            `msgpack:"content,omitempty" json:"content,omitempty"`
	Strength   float32           `msgpack:"strength,omitempty" json:"strength,omitempty"`
	Confidence float32           `msgpack:"confidence,omitempty" json:"confidence,omitempty"`
	Attributes map[string]string `msgpack:"attributes,omitempty" json:"attributes,omitempty"`

	NeighborIDs []string `msgpack:"neighbor_ids,omitempty" json:"neighbor_ids,omitempty"`
	Path        []string `msgpack:"path,omitempty" json:"path,omitempty"`

	Results []ScoredID   `msgpack:"results,omitempty" json:"results,omitempty"`
	Items   []RecentItem `msgpack:"items,omitempty" json:"items,omitempty"`

	Paths          []SemanticPath        `msgpack:"paths,omitempty" json:"paths,omitempty"`
	Contradictions []ContradictionMsg    `msgpack:"contradictions,omitempty" json:"contradictions,omitempty"`
	Concepts       []ConceptWithSemantic `msgpack:"concepts,omitempty" json:"concepts,omitempty"`

	ConceptCount    uint64 `msgpack:"concepts_count,omitempty" json:"concepts_count,omitempty"`
	EdgeCount       uint64 `msgpack:"edges,omitempty" json:"edges,omitempty"`
	VectorCount     uint64 `msgpack:"vectors,omitempty" json:"vectors,omitempty"`
	Written         uint64 `msgpack:"written,omitempty" json:"written,omitempty"`
	Dropped         uint64 `msgpack:"dropped,omitempty" json:"dropped,omitempty"`
	Pending         uint64 `msgpack:"pending,omitempty" json:"pending,omitempty"`
	Reconciliations uint64 `msgpack:"reconciliations,omitempty" json:"reconciliations,omitempty"`
	UptimeSeconds   uint64 `msgpack:"uptime_seconds,omitempty" json:"uptime_seconds,omitempty"`

	Healthy bool   `msgpack:"healthy,omitempty" json:"healthy,omitempty"`
	Status  string `msgpack:"status,omitempty" json:"status,omitempty"`

	Message string `msgpack:"message,omitempty" json:"message,omitempty"`
}

func errorResponse(format string, args ...any) Response {
	return Response{Type: "Error", Message: fmt.Sprintf(format, args...)}
}

// parseConceptID accepts either the canonical hex form a prior response
// returned, or an arbitrary caller-chosen string, hashing the latter the
// same way content-addressed learns do so repeated calls with the same
// string agree on an id.
func parseConceptID(s string) concept.ID {
	if id, err := concept.IDFromHex(s); err == nil && len(s) == 32 {
		return id
	}
	return concept.NewIDFromContent([]byte(s))
}
