// Package pipeline orchestrates the optional enrichment steps a learned
// concept passes through before it reaches storage: embedding
// generation, semantic classification, and association extraction.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/config"
	"github.com/sutra-engine/sutra-storage/sterr"
)

// EmbeddingProvider generates vector embeddings for text. LearnConcept
// and LearnBatch degrade to an unembedded write when it returns an
// error rather than failing the whole request.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text, model string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string, model string) [][]float32
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// HTTPEmbeddingClient talks to an Ollama-compatible /api/embeddings
// endpoint, with exponential-backoff retries on transient failure.
type HTTPEmbeddingClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTPEmbeddingClient(cfg config.EmbeddingConfig, logger *zap.Logger) *HTTPEmbeddingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPEmbeddingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

// Generate produces one embedding, retrying up to cfg.MaxRetries times
// with an exponential backoff between attempts.
func (c *HTTPEmbeddingClient) Generate(ctx context.Context, text, model string) ([]float32, error) {
	if model == "" {
		model = c.cfg.DefaultModel
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		vec, err := c.tryGenerate(ctx, text, model)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt < c.cfg.MaxRetries {
			delay := time.Duration(c.cfg.RetryDelayMs) * time.Millisecond * time.Duration(1<<uint(attempt))
			c.logger.Warn("embedding generation failed, retrying",
				zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, sterr.Wrap(sterr.Unavailable, "embedding generation failed after retries", lastErr)
}

func (c *HTTPEmbeddingClient) tryGenerate(ctx context.Context, text, model string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}

	url := c.cfg.URL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, text)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned an empty vector")
	}
	return out.Embedding, nil
}

// GenerateBatch generates embeddings sequentially, same as the original
// Ollama client: a failure on one text leaves that slot nil rather than
// failing the whole batch.
func (c *HTTPEmbeddingClient) GenerateBatch(ctx context.Context, texts []string, model string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Generate(ctx, text, model)
		if err != nil {
			c.logger.Warn("batch embedding failed for item", zap.Int("index", i), zap.Error(err))
			continue
		}
		out[i] = vec
	}
	return out
}
