package services

import "context"

// TextExtractor turns raw uploaded bytes into plain text. Implemented by
// Extractor.
type TextExtractor interface {
	Extract(raw []byte) (string, error)
}

// TextGenerator is the opaque prompt-in/text-out generation backend used by
// the classifier, summarizer and answer engine. Implemented by
// ai.GeminiClient.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Embedder maps text to fixed-dimension vectors. The query side and the
// ingestion side must share one configuration; mixing embedding spaces within
// a collection is a correctness bug. Implemented by ai.GeminiEmbedder and
// ai.MockEmbedder.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
