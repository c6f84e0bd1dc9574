package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/hnsw"
	"github.com/sutra-engine/sutra-storage/memory"
	"github.com/sutra-engine/sutra-storage/server"
)

// Pipeline implements server.Pipeline: it wraps the literal memory
// writes the server falls back to without one, adding embedding
// generation, semantic classification, and association extraction in
// front of them.
type Pipeline struct {
	embeddings EmbeddingProvider
	analyzer   *Analyzer
	extractor  *Extractor
	logger     *zap.Logger
}

func New(embeddings EmbeddingProvider, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embeddings: embeddings,
		analyzer:   NewAnalyzer(),
		extractor:  NewExtractor(),
		logger:     logger,
	}
}

var _ server.Pipeline = (*Pipeline)(nil)

// LearnConcept runs one piece of content through embedding, semantic
// classification, and association extraction, then writes the
// resulting concept (and any extracted associations) to mem.
func (p *Pipeline) LearnConcept(ctx context.Context, mem *memory.Memory, content string, opts server.LearnOptions) (concept.ID, error) {
	id := concept.NewIDFromContent([]byte(content))

	var vector []float32
	if opts.GenerateEmbedding {
		if v, err := p.embeddings.Generate(ctx, content, opts.EmbeddingModel); err != nil {
			p.logger.Warn("embedding generation failed, storing without one", zap.Error(err))
		} else {
			vector = v
		}
	}

	semantic := p.analyzer.Analyze(content)

	if _, err := mem.LearnConceptWithSemantic(id, []byte(content), vector, opts.Strength, opts.Confidence, nil, &semantic); err != nil {
		return concept.ID{}, err
	}

	if opts.ExtractAssociations {
		p.storeAssociations(mem, id, content, opts)
	}

	return id, nil
}

func (p *Pipeline) storeAssociations(mem *memory.Memory, source concept.ID, content string, opts server.LearnOptions) {
	extracted := p.extractor.Extract(content)
	stored := 0
	for _, assoc := range extracted {
		if stored >= opts.MaxAssociationsPerConcept {
			break
		}
		if assoc.Confidence < opts.MinAssociationConfidence {
			continue
		}
		target := concept.NewIDFromContent([]byte(assoc.Target))
		if _, err := mem.LearnAssociation(source, target, assoc.Type, assoc.Confidence); err != nil {
			p.logger.Warn("association store failed", zap.Error(err))
			continue
		}
		stored++
	}
}

// LearnBatch runs every content through LearnConcept, generating all
// embeddings up front before the first store. GenerateBatch still
// issues one embedding request per content, so the number of round
// trips to the embedding backend is not reduced.
func (p *Pipeline) LearnBatch(ctx context.Context, mem *memory.Memory, contents []string, opts server.LearnOptions) ([]concept.ID, error) {
	var vectors [][]float32
	if opts.GenerateEmbedding {
		vectors = p.embeddings.GenerateBatch(ctx, contents, opts.EmbeddingModel)
	}

	ids := make([]concept.ID, len(contents))
	for i, content := range contents {
		id := concept.NewIDFromContent([]byte(content))
		var vector []float32
		if vectors != nil && i < len(vectors) {
			vector = vectors[i]
		}

		semantic := p.analyzer.Analyze(content)
		if _, err := mem.LearnConceptWithSemantic(id, []byte(content), vector, opts.Strength, opts.Confidence, nil, &semantic); err != nil {
			return nil, err
		}
		if opts.ExtractAssociations {
			p.storeAssociations(mem, id, content, opts)
		}
		ids[i] = id
	}
	return ids, nil
}

// Search embeds query and runs a vector search against mem. efSearch is
// fixed at 128, matching the original pipeline's hardcoded balance of
// speed and accuracy.
func (p *Pipeline) Search(ctx context.Context, mem *memory.Memory, query string, limit int) ([]hnsw.Result, error) {
	vector, err := p.embeddings.Generate(ctx, query, "")
	if err != nil {
		return nil, err
	}
	return mem.VectorSearch(vector, limit, 128), nil
}
