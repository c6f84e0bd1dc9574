package server

import (
	"context"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/hnsw"
	"github.com/sutra-engine/sutra-storage/memory"
	"github.com/sutra-engine/sutra-storage/namespace"
	"github.com/sutra-engine/sutra-storage/semantic"
	"github.com/sutra-engine/sutra-storage/snapshot"
)

// Pipeline is the learning-pipeline surface the server dispatches
// enrichment-bearing requests through. A nil Pipeline on Server falls
// back to a literal, no-enrichment write for LearnConceptV2/LearnBatch
// and an empty result for TextSearch, so the server still runs useful
// end to end without the pipeline package wired in.
type Pipeline interface {
	LearnConcept(ctx context.Context, mem *memory.Memory, content string, opts LearnOptions) (concept.ID, error)
	LearnBatch(ctx context.Context, mem *memory.Memory, contents []string, opts LearnOptions) ([]concept.ID, error)
	Search(ctx context.Context, mem *memory.Memory, query string, limit int) ([]hnsw.Result, error)
}

func parseSemanticType(s string) (concept.SemanticType, bool) {
	switch s {
	case "entity":
		return concept.SemanticEntity, true
	case "event":
		return concept.SemanticEvent, true
	case "rule":
		return concept.SemanticRule, true
	case "temporal":
		return concept.SemanticTemporal, true
	case "negation":
		return concept.SemanticNegation, true
	case "condition":
		return concept.SemanticCondition, true
	case "causal":
		return concept.SemanticCausal, true
	case "quantitative":
		return concept.SemanticQuantitative, true
	case "definitional":
		return concept.SemanticDefinitional, true
	case "goal":
		return concept.SemanticGoal, true
	default:
		return 0, false
	}
}

func parseDomain(s string) (concept.Domain, bool) {
	switch s {
	case "general":
		return concept.DomainGeneral, true
	case "medical":
		return concept.DomainMedical, true
	case "legal":
		return concept.DomainLegal, true
	case "financial":
		return concept.DomainFinancial, true
	case "technical":
		return concept.DomainTechnical, true
	case "scientific":
		return concept.DomainScientific, true
	case "business":
		return concept.DomainBusiness, true
	default:
		return 0, false
	}
}

// resolveFilter converts the wire SemanticFilter into a semantic.Filter,
// silently dropping any semantic_type/domain_context string it can't
// recognize rather than failing the whole query.
func resolveFilter(msg SemanticFilter) semantic.Filter {
	var f semantic.Filter
	if msg.SemanticType != "" {
		if t, ok := parseSemanticType(msg.SemanticType); ok {
			f.Type = &t
		}
	}
	if msg.DomainContext != "" {
		if d, ok := parseDomain(msg.DomainContext); ok {
			f.Domain = &d
		}
	}
	if msg.TemporalAfter != nil {
		v := uint64(*msg.TemporalAfter)
		f.TemporalAfter = &v
	}
	if msg.TemporalBefore != nil {
		v := uint64(*msg.TemporalBefore)
		f.TemporalBefore = &v
	}
	f.HasCausalRelation = msg.HasCausalRelation
	if msg.MinConfidence != 0 {
		v := msg.MinConfidence
		f.MinConfidence = &v
	}
	f.RequiredSubstrings = msg.RequiredTerms
	return f
}

func toSemanticPathMsg(snap *snapshot.GraphSnapshot, p semantic.Path) SemanticPath {
	concepts := make([]string, len(p.Nodes))
	for i, id := range p.Nodes {
		concepts[i] = id.Hex()
	}

	dist := make(map[string]int)
	var prevStart uint64
	ordered := true
	haveTemporal := false
	for _, id := range p.Nodes {
		node, ok := snap.GetConcept(id)
		if !ok || node.Semantic == nil {
			continue
		}
		dist[node.Semantic.Type.String()]++
		if node.Semantic.Temporal != nil {
			start := node.Semantic.Temporal.Start
			if haveTemporal && start < prevStart {
				ordered = false
			}
			prevStart = start
			haveTemporal = true
		}
	}

	domains := make([]string, len(p.Domains))
	for i, d := range p.Domains {
		domains[i] = d.String()
	}

	return SemanticPath{
		Concepts:            concepts,
		Confidence:          p.Confidence,
		TypeDistribution:    dist,
		Domains:             domains,
		IsTemporallyOrdered: ordered,
	}
}

// HandleRequest dispatches one decoded Request against mgr and returns
// the Response to send back. It never panics: every failure path from a
// namespace or pipeline call, and any panic inside a handler, is
// translated into an Error response.
func (s *Server) HandleRequest(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse("internal error handling %s: %v", req.Type, r)
		}
	}()
	switch req.Type {
	case "LearnConceptV2":
		return s.handleLearnConceptV2(ctx, req)
	case "LearnBatch":
		return s.handleLearnBatch(ctx, req)
	case "LearnWithEmbedding":
		return s.handleLearnWithEmbedding(req)
	case "LearnConcept":
		return s.handleLearnConcept(req)
	case "LearnAssociation":
		return s.handleLearnAssociation(req)
	case "QueryConcept":
		return s.handleQueryConcept(req)
	case "DeleteConcept":
		return s.handleDeleteConcept(req)
	case "ClearCollection":
		return s.handleClearCollection(req)
	case "GetNeighbors":
		return s.handleGetNeighbors(req)
	case "FindPath":
		return s.handleFindPath(req)
	case "VectorSearch":
		return s.handleVectorSearch(req)
	case "ListRecent":
		return s.handleListRecent(req)
	case "FindPathSemantic":
		return s.handleFindPathSemantic(req)
	case "FindTemporalChain":
		return s.handleFindTemporalChain(req)
	case "FindCausalChain":
		return s.handleFindCausalChain(req)
	case "FindContradictions":
		return s.handleFindContradictions(req)
	case "QueryBySemantic":
		return s.handleQueryBySemantic(req)
	case "TextSearch":
		return s.handleTextSearch(ctx, req)
	case "GetStats":
		return s.handleGetStats(req)
	case "Flush":
		return s.handleFlush()
	case "HealthCheck":
		return s.handleHealthCheck()
	default:
		return errorResponse("unknown request type: %s", req.Type)
	}
}

func (s *Server) mem(namespaceName string) *memory.Memory {
	if namespaceName == "" {
		namespaceName = namespace.Default
	}
	return s.namespaces.Get(namespaceName)
}

func (s *Server) handleLearnConceptV2(ctx context.Context, req Request) Response {
	if len(req.Content) > MaxContentSize {
		return errorResponse("content too large: %d bytes (max %d)", len(req.Content), MaxContentSize)
	}
	mem := s.mem(req.Namespace)
	opts := req.Options
	if s.pipeline == nil {
		id := parseConceptID(req.Content)
		if _, err := mem.LearnConcept(id, []byte(req.Content), nil, opts.Strength, opts.Confidence, nil); err != nil {
			return errorResponse("LearnConceptV2 failed: %v", err)
		}
		return Response{Type: "LearnConceptV2Ok", ConceptID: id.Hex()}
	}
	id, err := s.pipeline.LearnConcept(ctx, mem, req.Content, opts)
	if err != nil {
		return errorResponse("LearnConceptV2 failed: %v", err)
	}
	return Response{Type: "LearnConceptV2Ok", ConceptID: id.Hex()}
}

func (s *Server) handleLearnBatch(ctx context.Context, req Request) Response {
	if len(req.Contents) > MaxBatchSize {
		return errorResponse("batch too large: %d items (max %d)", len(req.Contents), MaxBatchSize)
	}
	for i, c := range req.Contents {
		if len(c) > MaxContentSize {
			return errorResponse("batch item %d too large: %d bytes (max %d)", i, len(c), MaxContentSize)
		}
	}
	mem := s.mem(req.Namespace)
	opts := req.Options
	if s.pipeline == nil {
		ids := make([]string, len(req.Contents))
		for i, c := range req.Contents {
			id := parseConceptID(c)
			if _, err := mem.LearnConcept(id, []byte(c), nil, opts.Strength, opts.Confidence, nil); err != nil {
				return errorResponse("LearnBatch failed at item %d: %v", i, err)
			}
			ids[i] = id.Hex()
		}
		return Response{Type: "LearnBatchOk", ConceptIDs: ids}
	}
	ids, err := s.pipeline.LearnBatch(ctx, mem, req.Contents, opts)
	if err != nil {
		return errorResponse("LearnBatch failed: %v", err)
	}
	hexIDs := make([]string, len(ids))
	for i, id := range ids {
		hexIDs[i] = id.Hex()
	}
	return Response{Type: "LearnBatchOk", ConceptIDs: hexIDs}
}

func (s *Server) handleLearnWithEmbedding(req Request) Response {
	if len(req.Content) > MaxContentSize {
		return errorResponse("content too large: %d bytes (max %d)", len(req.Content), MaxContentSize)
	}
	if len(req.Embedding) > MaxEmbeddingDim {
		return errorResponse("embedding dimension too large: %d (max %d)", len(req.Embedding), MaxEmbeddingDim)
	}
	mem := s.mem(req.Namespace)
	id := req.ID
	var cid concept.ID
	if id != "" {
		cid = parseConceptID(id)
	} else {
		cid = concept.NewIDFromContent([]byte(req.Content))
	}
	if _, err := mem.LearnConcept(cid, []byte(req.Content), req.Embedding, 1.0, 1.0, req.Metadata); err != nil {
		return errorResponse("LearnWithEmbedding failed: %v", err)
	}
	return Response{Type: "LearnConceptV2Ok", ConceptID: cid.Hex()}
}

func (s *Server) handleLearnConcept(req Request) Response {
	if len(req.Content) > MaxContentSize {
		return errorResponse("content too large: %d bytes (max %d)", len(req.Content), MaxContentSize)
	}
	if len(req.Embedding) > MaxEmbeddingDim {
		return errorResponse("embedding dimension too large: %d (max %d)", len(req.Embedding), MaxEmbeddingDim)
	}
	mem := s.mem(req.Namespace)
	id := parseConceptID(req.ConceptID)
	var vector []float32
	if len(req.Embedding) > 0 {
		vector = req.Embedding
	}
	seq, err := mem.LearnConcept(id, []byte(req.Content), vector, req.Strength, req.Confidence, nil)
	if err != nil {
		return errorResponse("learn concept failed: %v", err)
	}
	return Response{Type: "LearnConceptOk", Sequence: seq}
}

func (s *Server) handleLearnAssociation(req Request) Response {
	mem := s.mem(req.Namespace)
	source := parseConceptID(req.SourceID)
	target := parseConceptID(req.TargetID)
	atype := concept.AssociationTypeFromByte(byte(req.AssocType))
	seq, err := mem.LearnAssociation(source, target, atype, req.Confidence)
	if err != nil {
		return errorResponse("learn association failed: %v", err)
	}
	return Response{Type: "LearnAssociationOk", Sequence: seq}
}

func (s *Server) handleQueryConcept(req Request) Response {
	mem := s.mem(req.Namespace)
	id := parseConceptID(req.ConceptID)
	node, ok := mem.QueryConcept(id)
	if !ok {
		return Response{Type: "QueryConceptOk", Found: false}
	}
	return Response{
		Type:       "QueryConceptOk",
		Found:      true,
		ConceptID:  id.Hex(),
		Content:    string(node.Content),
		Strength:   node.Strength,
		Confidence: node.Confidence,
		Attributes: node.Attributes,
	}
}

func (s *Server) handleDeleteConcept(req Request) Response {
	mem := s.mem(req.Namespace)
	id := parseConceptID(req.ID)
	if _, err := mem.DeleteConcept(id); err != nil {
		return errorResponse("delete failed: %v", err)
	}
	return Response{Type: "DeleteConceptOk", ID: req.ID}
}

func (s *Server) handleClearCollection(req Request) Response {
	mem := s.mem(req.Namespace)
	mem.Clear()
	return Response{Type: "ClearCollectionOk", Namespace: req.Namespace}
}

func (s *Server) handleGetNeighbors(req Request) Response {
	mem := s.mem(req.Namespace)
	id := parseConceptID(req.ConceptID)
	neighbors := mem.QueryNeighbors(id)
	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Hex()
	}
	return Response{Type: "GetNeighborsOk", NeighborIDs: ids}
}

func (s *Server) handleFindPath(req Request) Response {
	if req.MaxDepth > MaxPathDepth {
		return errorResponse("path depth too large: %d (max %d)", req.MaxDepth, MaxPathDepth)
	}
	mem := s.mem(req.Namespace)
	start := parseConceptID(req.StartID)
	end := parseConceptID(req.EndID)
	path, found := mem.FindPath(start, end, int(req.MaxDepth))
	if !found {
		return Response{Type: "FindPathOk", Found: false}
	}
	ids := make([]string, len(path))
	for i, id := range path {
		ids[i] = id.Hex()
	}
	return Response{Type: "FindPathOk", Found: true, Path: ids}
}

func (s *Server) handleVectorSearch(req Request) Response {
	if len(req.QueryVector) > MaxEmbeddingDim {
		return errorResponse("query vector dimension too large: %d (max %d)", len(req.QueryVector), MaxEmbeddingDim)
	}
	if req.K > MaxSearchK {
		return errorResponse("k too large: %d (max %d)", req.K, MaxSearchK)
	}
	mem := s.mem(req.Namespace)
	results := mem.VectorSearch(req.QueryVector, int(req.K), int(req.EfSearch))
	out := make([]ScoredID, len(results))
	for i, r := range results {
		out[i] = ScoredID{ID: r.ID.Hex(), Score: r.Similarity}
	}
	return Response{Type: "VectorSearchOk", Results: out}
}

func (s *Server) handleListRecent(req Request) Response {
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()

	var items []RecentItem
	snap.Ascend(func(node *concept.Node) bool {
		preview := node.Content
		if len(preview) > 200 {
			preview = preview[:200]
		}
		items = append(items, RecentItem{
			ID:             node.ID.Hex(),
			ContentPreview: string(preview),
			Created:        node.Created,
			Attributes:     node.Attributes,
		})
		return true
	})

	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Created > items[j-1].Created; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	if int(req.Limit) < len(items) {
		items = items[:req.Limit]
	}
	return Response{Type: "ListRecentOk", Items: items}
}

func (s *Server) handleFindPathSemantic(req Request) Response {
	if req.MaxDepth > MaxPathDepth {
		return errorResponse("path depth too large: %d (max %d)", req.MaxDepth, MaxPathDepth)
	}
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()
	pf := semantic.New(snap)
	start := parseConceptID(req.StartID)
	end := parseConceptID(req.EndID)
	maxPaths := int(req.MaxPaths)
	if maxPaths <= 0 {
		maxPaths = 10
	}
	paths := pf.FindPathsFiltered(start, end, resolveFilter(req.Filter), int(req.MaxDepth), maxPaths)
	return Response{Type: "FindPathSemanticOk", Paths: toSemanticPathMsgs(snap, paths)}
}

func (s *Server) handleFindTemporalChain(req Request) Response {
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()
	pf := semantic.New(snap)
	var domain *concept.Domain
	if req.Domain != "" {
		if d, ok := parseDomain(req.Domain); ok {
			domain = &d
		}
	}
	ids := pf.FindTemporalChain(domain, uint64(req.StartTime), uint64(req.EndTime))
	path := semantic.Path{Nodes: ids, Confidence: 1}
	return Response{Type: "FindTemporalChainOk", Paths: []SemanticPath{toSemanticPathMsg(snap, path)}}
}

func (s *Server) handleFindCausalChain(req Request) Response {
	if req.MaxDepth > MaxPathDepth {
		return errorResponse("path depth too large: %d (max %d)", req.MaxDepth, MaxPathDepth)
	}
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()
	pf := semantic.New(snap)
	start := parseConceptID(req.StartID)
	ids := pf.FindCausalChain(start, req.CausalType, int(req.MaxDepth))
	path := semantic.Path{Nodes: ids, Confidence: 1}
	return Response{Type: "FindCausalChainOk", Paths: []SemanticPath{toSemanticPathMsg(snap, path)}}
}

func (s *Server) handleFindContradictions(req Request) Response {
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()
	pf := semantic.New(snap)
	domain, ok := parseDomain(req.Domain)
	if !ok {
		domain = concept.DomainGeneral
	}
	contradictions := pf.FindContradictions(domain)
	out := make([]ContradictionMsg, len(contradictions))
	for i, c := range contradictions {
		out[i] = ContradictionMsg{A: c.A.Hex(), B: c.B.Hex(), Reason: c.Reason}
	}
	return Response{Type: "FindContradictionsOk", Contradictions: out}
}

func (s *Server) handleQueryBySemantic(req Request) Response {
	mem := s.mem(req.Namespace)
	snap := mem.GetSnapshot()
	filter := resolveFilter(req.Filter)
	limit := int(req.Limit)

	var out []ConceptWithSemantic
	snap.Ascend(func(node *concept.Node) bool {
		if !filter.Matches(node) {
			return true
		}
		semType, domain := "", ""
		confidence := float32(0)
		if node.Semantic != nil {
			semType = node.Semantic.Type.String()
			domain = node.Semantic.Domain.String()
			confidence = node.Semantic.Confidence
		}
		out = append(out, ConceptWithSemantic{
			ConceptID:    node.ID.Hex(),
			Content:      string(node.Content),
			SemanticType: semType,
			Domain:       domain,
			Confidence:   confidence,
		})
		return limit <= 0 || len(out) < limit
	})
	return Response{Type: "QueryBySemanticOk", Concepts: out}
}

func (s *Server) handleTextSearch(ctx context.Context, req Request) Response {
	mem := s.mem(req.Namespace)
	if s.pipeline == nil {
		return Response{Type: "TextSearchOk"}
	}
	results, err := s.pipeline.Search(ctx, mem, req.Query, int(req.Limit))
	if err != nil {
		return errorResponse("TextSearch failed: %v", err)
	}
	out := make([]ScoredID, len(results))
	for i, r := range results {
		out[i] = ScoredID{ID: r.ID.Hex(), Score: r.Similarity}
	}
	return Response{Type: "TextSearchOk", Results: out}
}

func (s *Server) handleGetStats(req Request) Response {
	mem := s.mem(req.Namespace)
	stats := mem.Stats()
	hnswStats := mem.HnswStats()
	return Response{
		Type:            "StatsOk",
		ConceptCount:    uint64(stats.ConceptCount),
		EdgeCount:       uint64(stats.EdgeCount),
		VectorCount:     uint64(hnswStats.NumVectors),
		Written:         stats.WriteLog.Written,
		Dropped:         stats.WriteLog.Dropped,
		Pending:         stats.WriteLog.Pending,
		Reconciliations: stats.Reconciler.Cycles,
		UptimeSeconds:   s.uptimeSeconds(),
	}
}

func (s *Server) handleFlush() Response {
	s.namespaces.FlushAll()
	return Response{Type: "FlushOk"}
}

func (s *Server) handleHealthCheck() Response {
	return Response{
		Type:          "HealthCheckOk",
		Healthy:       true,
		Status:        "ok",
		UptimeSeconds: s.uptimeSeconds(),
	}
}

func toSemanticPathMsgs(snap *snapshot.GraphSnapshot, paths []semantic.Path) []SemanticPath {
	out := make([]SemanticPath, len(paths))
	for i, p := range paths {
		out[i] = toSemanticPathMsg(snap, p)
	}
	return out
}
