package semantic

import (
	"sort"
	"strings"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/snapshot"
)

// PathFinder runs filtered traversals over one GraphSnapshot. Unlike
// snapshot.GraphSnapshot.FindPath, every method here restricts the
// search to nodes a Filter accepts, and several methods reason about
// SemanticMetadata directly rather than just adjacency.
type PathFinder struct {
	snap *snapshot.GraphSnapshot
}

// New builds a PathFinder over snap.
func New(snap *snapshot.GraphSnapshot) *PathFinder {
	return &PathFinder{snap: snap}
}

// Path is one filtered-BFS result: the node sequence plus the product
// of traversed edge confidences and the distinct semantic types/domains
// observed along it.
type Path struct {
	Nodes      []concept.ID
	Confidence float32
	Types      []concept.SemanticType
	Domains    []concept.Domain
}

type pathFrame struct {
	id         concept.ID
	nodes      []concept.ID
	confidence float32
}

// FindPathsFiltered performs bounded BFS from start to end, visiting
// only nodes that pass filter (start and end are exempt from the
// filter so a caller can search "through" a type without requiring the
// endpoints to match it), returning up to maxPaths distinct paths no
// longer than maxDepth edges, shortest first.
func (p *PathFinder) FindPathsFiltered(start, end concept.ID, filter Filter, maxDepth, maxPaths int) []Path {
	if !p.snap.Contains(start) || !p.snap.Contains(end) {
		return nil
	}
	if maxPaths <= 0 {
		return nil
	}

	var results []Path
	visited := map[concept.ID]int{start: 0} // id -> shortest depth seen
	queue := []pathFrame{{id: start, nodes: []concept.ID{start}, confidence: 1}}

	for depth := 0; len(queue) > 0 && depth <= maxDepth && len(results) < maxPaths; depth++ {
		var next []pathFrame
		for _, f := range queue {
			if len(f.nodes)-1 >= maxDepth {
				continue
			}
			for _, wn := range p.snap.GetNeighborsWeighted(f.id) {
				nb := wn.ID
				if nb == end {
					path := appendPath(f.nodes, nb)
					results = append(results, p.buildPath(path, f.confidence*wn.Confidence))
					if len(results) >= maxPaths {
						break
					}
					continue
				}
				node, ok := p.snap.GetConcept(nb)
				if !ok || !filter.Matches(node) {
					continue
				}
				if d, seen := visited[nb]; seen && d <= depth+1 {
					continue
				}
				visited[nb] = depth + 1
				next = append(next, pathFrame{
					id:         nb,
					nodes:      appendPath(f.nodes, nb),
					confidence: f.confidence * wn.Confidence,
				})
			}
			if len(results) >= maxPaths {
				break
			}
		}
		queue = next
	}
	return results
}

func appendPath(nodes []concept.ID, next concept.ID) []concept.ID {
	out := make([]concept.ID, len(nodes)+1)
	copy(out, nodes)
	out[len(nodes)] = next
	return out
}

func (p *PathFinder) buildPath(nodes []concept.ID, confidence float32) Path {
	seenType := map[concept.SemanticType]bool{}
	seenDomain := map[concept.Domain]bool{}
	var types []concept.SemanticType
	var domains []concept.Domain
	for _, id := range nodes {
		node, ok := p.snap.GetConcept(id)
		if !ok || node.Semantic == nil {
			continue
		}
		if !seenType[node.Semantic.Type] {
			seenType[node.Semantic.Type] = true
			types = append(types, node.Semantic.Type)
		}
		if !seenDomain[node.Semantic.Domain] {
			seenDomain[node.Semantic.Domain] = true
			domains = append(domains, node.Semantic.Domain)
		}
	}
	return Path{Nodes: nodes, Confidence: confidence, Types: types, Domains: domains}
}

// FindTemporalChain returns event/temporal-typed nodes whose temporal
// bounds fall within [startTS, endTS], optionally restricted to
// domain, ordered by their Temporal.Start timestamp.
func (p *PathFinder) FindTemporalChain(domain *concept.Domain, startTS, endTS uint64) []concept.ID {
	type hit struct {
		id    concept.ID
		start uint64
	}
	var hits []hit
	p.snap.Ascend(func(node *concept.Node) bool {
		meta := node.Semantic
		if meta == nil || meta.Temporal == nil {
			return true
		}
		if meta.Type != concept.SemanticEvent && meta.Type != concept.SemanticTemporal {
			return true
		}
		if domain != nil && meta.Domain != *domain {
			return true
		}
		if meta.Temporal.Start < startTS || meta.Temporal.Start > endTS {
			return true
		}
		hits = append(hits, hit{id: node.ID, start: meta.Temporal.Start})
		return true
	})
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	out := make([]concept.ID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// FindCausalChain walks a single chain from start, bounded by maxDepth:
// at each step it follows the first CausalRelation of the given kind
// whose target exists in the snapshot and is not yet on the chain.
// Other matching relations are not explored, so branches are not
// searched and the result is one chain, not a BFS frontier. For
// v2 storage, which does not persist AssociationType, causal structure
// is derived from SemanticMetadata.CausalRelations rather than the
// edge's Type field.
func (p *PathFinder) FindCausalChain(start concept.ID, causalKind string, maxDepth int) []concept.ID {
	if !p.snap.Contains(start) {
		return nil
	}

	visited := map[concept.ID]struct{}{start: {}}
	chain := []concept.ID{start}
	current := start

	for depth := 0; depth < maxDepth; depth++ {
		node, ok := p.snap.GetConcept(current)
		if !ok || node.Semantic == nil {
			break
		}
		var nextHop concept.ID
		found := false
		for _, rel := range node.Semantic.CausalRelations {
			if rel.Kind != causalKind {
				continue
			}
			if _, seen := visited[rel.Target]; seen {
				continue
			}
			if !p.snap.Contains(rel.Target) {
				continue
			}
			nextHop = rel.Target
			found = true
			break
		}
		if !found {
			break
		}
		visited[nextHop] = struct{}{}
		chain = append(chain, nextHop)
		current = nextHop
	}
	return chain
}

// Contradiction is one detected pair of conflicting nodes.
type Contradiction struct {
	A, B   concept.ID
	Reason string
}

// FindContradictions enumerates pairs of nodes in domain whose semantic
// classes or negation scopes conflict by a fixed deterministic rule
// set: two nodes contradict when they share a SemanticType and exactly
// one of them carries a non-empty NegationScope matching the other's
// content, or when both are Rule-typed with overlapping causal targets
// but opposite NegationScope presence.
func (p *PathFinder) FindContradictions(domain concept.Domain) []Contradiction {
	var candidates []*concept.Node
	p.snap.Ascend(func(node *concept.Node) bool {
		if node.Semantic != nil && node.Semantic.Domain == domain {
			candidates = append(candidates, node)
		}
		return true
	})

	var out []Contradiction
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if reason, ok := contradicts(a, b); ok {
				out = append(out, Contradiction{A: a.ID, B: b.ID, Reason: reason})
			}
		}
	}
	return out
}

func contradicts(a, b *concept.Node) (string, bool) {
	if a.Semantic.Type != b.Semantic.Type {
		return "", false
	}
	aNeg := a.Semantic.NegationScope != ""
	bNeg := b.Semantic.NegationScope != ""
	if aNeg == bNeg {
		return "", false
	}
	if aNeg && negationTargets(a.Semantic.NegationScope, b.Content) {
		return "negation scope of one concept targets the other's content", true
	}
	if bNeg && negationTargets(b.Semantic.NegationScope, a.Content) {
		return "negation scope of one concept targets the other's content", true
	}
	if a.Semantic.Type == concept.SemanticRule {
		for _, ra := range a.Semantic.CausalRelations {
			for _, rb := range b.Semantic.CausalRelations {
				if ra.Target == rb.Target {
					return "rule concepts share a causal target but disagree on negation", true
				}
			}
		}
	}
	return "", false
}

func negationTargets(scope string, content []byte) bool {
	if scope == "" {
		return false
	}
	return strings.Contains(caser.String(string(content)), caser.String(scope))
}
