package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vector"
	"docqa-platform/models"
)

// ingestTimeout bounds one full pipeline run regardless of the caller's
// context, which is detached so an abandoned HTTP request cannot leave a
// document stuck in an intermediate status.
const ingestTimeout = 10 * time.Minute

// IngestService runs the document pipeline: extract, chunk, embed, index,
// classify, summarize, commit. At most one ingestion per document is in
// flight; a second request for the same doc ID while one runs is rejected
// with ErrConcurrentIngestion. Different documents ingest concurrently.
type IngestService struct {
	registry   DocumentRegistry
	files      *FileStore
	extractor  TextExtractor
	chunker    *Chunker
	embedder   Embedder
	index      vector.Index
	classifier *Classifier
	summarizer *Summarizer
	metrics    *telemetry.Metrics

	inflight sync.Map // doc ID -> struct{}
}

func NewIngestService(
	registry DocumentRegistry,
	files *FileStore,
	extractor TextExtractor,
	chunker *Chunker,
	embedder Embedder,
	index vector.Index,
	classifier *Classifier,
	summarizer *Summarizer,
	metrics *telemetry.Metrics,
) *IngestService {
	return &IngestService{
		registry:   registry,
		files:      files,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		classifier: classifier,
		summarizer: summarizer,
		metrics:    metrics,
	}
}

// tryAcquire atomically claims the per-document ingestion slot.
func (s *IngestService) tryAcquire(docID string) bool {
	_, loaded := s.inflight.LoadOrStore(docID, struct{}{})
	return !loaded
}

func (s *IngestService) release(docID string) {
	s.inflight.Delete(docID)
}

// Ingest processes raw PDF bytes for an existing registry record. On success
// the committed record carries the classification, summary, and chunk count;
// on failure the record is marked failed and the document's previously
// indexed state, if any, is left untouched.
func (s *IngestService) Ingest(ctx context.Context, docID string, raw []byte) (*models.IngestResponse, error) {
	if !s.tryAcquire(docID) {
		return nil, fmt.Errorf("%w: %s", ErrConcurrentIngestion, docID)
	}
	defer s.release(docID)

	// Detach from the caller so client disconnects do not abort a running
	// pipeline mid-flight.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ingestTimeout)
	defer cancel()

	return s.run(runCtx, docID, raw)
}

// Reprocess re-runs the full pipeline from the stored original file. Until
// the new run commits, queries keep being served from the document's current
// index and registry state.
func (s *IngestService) Reprocess(ctx context.Context, docID string) (*models.IngestResponse, error) {
	doc, err := s.registry.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	raw, err := s.files.Read(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: stored file unavailable: %v", ErrNotFound, docID, err)
	}
	return s.Ingest(ctx, docID, raw)
}

// Delete removes the document everywhere: vector collection, registry record,
// stored file. Rejected while an ingestion for the document is running.
func (s *IngestService) Delete(ctx context.Context, docID string) error {
	if !s.tryAcquire(docID) {
		return fmt.Errorf("%w: %s", ErrConcurrentIngestion, docID)
	}
	defer s.release(docID)

	doc, err := s.registry.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	if err := s.index.Delete(ctx, docID); err != nil {
		return fmt.Errorf("%w: delete collection: %v", ErrRetrieval, err)
	}
	if err := s.registry.Delete(ctx, docID); err != nil {
		return err
	}
	s.files.Remove(doc.FilePath)

	logger.Info("document deleted", "doc_id", docID)
	return nil
}

func (s *IngestService) run(ctx context.Context, docID string, raw []byte) (*models.IngestResponse, error) {
	started := time.Now()
	doc, err := s.registry.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	// Cross-process guard: the in-process slot only covers this replica, the
	// registry status covers a run started elsewhere (server vs worker).
	if models.InFlight(doc.Status) {
		return nil, fmt.Errorf("%w: %s (status %s)", ErrConcurrentIngestion, docID, doc.Status)
	}

	fail := func(step string, err error) (*models.IngestResponse, error) {
		logger.Error("ingestion failed", "doc_id", docID, "step", step, "error", err)
		if serr := s.registry.SetStatus(ctx, docID, models.StatusFailed, err.Error()); serr != nil {
			logger.Error("failed to record ingestion failure", "doc_id", docID, "error", serr)
		}
		s.recordIngest(ctx, started, "failed")
		return nil, err
	}

	// A failed status write aborts the run through fail so the record cannot
	// be left stuck in an intermediate status.
	step := func(status string) error {
		return s.registry.SetStatus(ctx, docID, status, "")
	}

	if err := step(models.StatusExtracting); err != nil {
		return fail("advance to "+models.StatusExtracting, err)
	}
	text, err := s.extractor.Extract(raw)
	if err != nil {
		return fail("extract", err)
	}

	if err := step(models.StatusChunking); err != nil {
		return fail("advance to "+models.StatusChunking, err)
	}
	chunks := s.chunker.Split(text)

	if err := step(models.StatusEmbedding); err != nil {
		return fail("advance to "+models.StatusEmbedding, err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fail("embed", fmt.Errorf("%w: %v", ErrEmbedding, err))
	}

	if err := step(models.StatusIndexing); err != nil {
		return fail("advance to "+models.StatusIndexing, err)
	}
	entries := make([]vector.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vector.Entry{ChunkID: c.ChunkID, Text: c.Text, Offset: c.Offset, Vector: vectors[i]}
	}
	if err := s.index.Upsert(ctx, docID, entries); err != nil {
		return fail("index", fmt.Errorf("%w: %v", ErrRetrieval, err))
	}

	if err := step(models.StatusClassifying); err != nil {
		return fail("advance to "+models.StatusClassifying, err)
	}
	isCV, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return fail("classify", err)
	}

	if err := step(models.StatusSummarizing); err != nil {
		return fail("advance to "+models.StatusSummarizing, err)
	}
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		return fail("summarize", err)
	}

	if err := step(models.StatusCommitting); err != nil {
		return fail("advance to "+models.StatusCommitting, err)
	}
	now := time.Now()
	doc.IsCV = isCV
	doc.Summary = summary
	doc.ChunkCount = len(chunks)
	doc.Status = models.StatusCompleted
	doc.ErrorMessage = ""
	doc.ProcessedAt = &now
	if err := s.registry.Upsert(ctx, doc); err != nil {
		return fail("commit", err)
	}

	s.recordIngest(ctx, started, "completed")
	logger.Info("document ingested",
		"doc_id", docID,
		"is_cv", isCV,
		"chunks", len(chunks),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &models.IngestResponse{
		ID:         docID,
		IsCV:       isCV,
		Summary:    summary,
		ChunkCount: len(chunks),
		Status:     models.StatusCompleted,
	}, nil
}

func (s *IngestService) recordIngest(ctx context.Context, started time.Time, status string) {
	if s.metrics != nil {
		s.metrics.RecordIngest(ctx, time.Since(started).Seconds(), status)
	}
}
