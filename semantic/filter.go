// Package semantic implements the filtered-traversal query layer that
// sits above a plain GraphSnapshot: a predicate filter over a node's
// classifier-assigned SemanticMetadata, and a path finder that
// restricts BFS to nodes passing that filter.
package semantic

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sutra-engine/sutra-storage/concept"
)

// Filter is a conjunction of optional predicates. A nil pointer field
// means "no constraint on this dimension"; a node matches when every
// present predicate holds.
type Filter struct {
	Type               *concept.SemanticType
	Domain             *concept.Domain
	TemporalAfter      *uint64
	TemporalBefore     *uint64
	HasCausalRelation  bool
	MinConfidence      *float32
	RequiredSubstrings []string
}

var caser = cases.Lower(language.Und)

// Matches reports whether node satisfies every predicate f sets.
// A node with no SemanticMetadata fails any filter that constrains a
// semantic field, but an all-nil filter (only RequiredSubstrings, if
// any) still evaluates content-only predicates against it.
func (f Filter) Matches(node *concept.Node) bool {
	meta := node.Semantic

	if f.Type != nil {
		if meta == nil || meta.Type != *f.Type {
			return false
		}
	}
	if f.Domain != nil {
		if meta == nil || meta.Domain != *f.Domain {
			return false
		}
	}
	if f.TemporalAfter != nil {
		if meta == nil || meta.Temporal == nil || meta.Temporal.Start < *f.TemporalAfter {
			return false
		}
	}
	if f.TemporalBefore != nil {
		if meta == nil || meta.Temporal == nil {
			return false
		}
		if meta.Temporal.End != 0 && meta.Temporal.End > *f.TemporalBefore {
			return false
		}
	}
	if f.HasCausalRelation {
		if meta == nil || len(meta.CausalRelations) == 0 {
			return false
		}
	}
	if f.MinConfidence != nil {
		if meta == nil || meta.Confidence < *f.MinConfidence {
			return false
		}
	}
	if len(f.RequiredSubstrings) > 0 {
		lowered := caser.String(string(node.Content))
		for _, sub := range f.RequiredSubstrings {
			if !strings.Contains(lowered, caser.String(sub)) {
				return false
			}
		}
	}
	return true
}
