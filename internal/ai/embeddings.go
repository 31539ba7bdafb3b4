package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"

	"docqa-platform/internal/config"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiEmbedder maps text to fixed-dimension vectors using the Google
// embeddings model. The model name and dimensionality are fixed at
// construction; vectors from different configurations must never share a
// collection, so the ingesting and querying sides hold the same instance.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dims      int
	batchSize int
	timeout   time.Duration
	retries   int
}

func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	retries := cfg.BackendRetries
	if retries < 1 {
		retries = 1
	}

	return &GeminiEmbedder{
		client:    client,
		model:     cfg.EmbeddingsModel,
		dims:      cfg.VectorDimensions,
		batchSize: batchSize,
		timeout:   cfg.BackendTimeout,
		retries:   retries,
	}, nil
}

// EmbedBatch embeds the given texts, preserving order. The input is split
// into backend-sized batches; batching never changes the vector produced for
// an individual text.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchVectors, err := e.embedOneBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string with the same model configuration
// used at ingestion time.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedOneBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the fixed vector dimensionality of this configuration.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}

func (e *GeminiEmbedder) embedOneBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)

	var lastErr error
	for attempt := 0; attempt < e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		batch := em.NewBatch()
		for _, text := range texts {
			batch = batch.AddContent(genai.Text(text))
		}
		resp, err := em.BatchEmbedContents(callCtx, batch)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embeddings) != len(texts) {
			lastErr = fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
			continue
		}

		vectors := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("no embedding returned for input %d", i)
			}
			if len(emb.Values) != e.dims {
				return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(emb.Values), e.dims)
			}
			vectors[i] = emb.Values
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.retries, lastErr)
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
