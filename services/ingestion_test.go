package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/vector"
	"docqa-platform/models"
)

// fakeRegistry is an in-memory DocumentRegistry for pipeline tests.
type fakeRegistry struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{docs: make(map[string]models.Document)}
}

func (r *fakeRegistry) Get(ctx context.Context, docID string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (r *fakeRegistry) Exists(ctx context.Context, docID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.docs[docID]
	return ok, nil
}

func (r *fakeRegistry) Upsert(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.UpdatedAt = time.Now()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *fakeRegistry) SetStatus(ctx context.Context, docID, status, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	doc.UpdatedAt = time.Now()
	r.docs[docID] = doc
	return nil
}

func (r *fakeRegistry) Delete(ctx context.Context, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[docID]; !ok {
		return ErrNotFound
	}
	delete(r.docs, docID)
	return nil
}

func (r *fakeRegistry) List(ctx context.Context) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc)
	}
	return out, nil
}

// scriptGenerator returns canned responses in order and records the last
// prompt it received.
type scriptGenerator struct {
	mu         sync.Mutex
	responses  []string
	err        error
	calls      int
	lastSystem string
	lastPrompt string
}

func (g *scriptGenerator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastSystem = system
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "ok", nil
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(raw []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

type ingestFixture struct {
	registry *fakeRegistry
	index    *vector.MemoryIndex
	embedder *ai.MockEmbedder
	svc      *IngestService
}

func newIngestFixture(t *testing.T, extractor TextExtractor, gen TextGenerator) *ingestFixture {
	t.Helper()

	registry := newFakeRegistry()
	index, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	embedder := ai.NewMockEmbedder(8)
	chunker, err := NewChunker(50, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	svc := NewIngestService(
		registry, files, extractor, chunker, embedder, index,
		NewClassifier(gen), NewSummarizer(gen), nil,
	)
	return &ingestFixture{registry: registry, index: index, embedder: embedder, svc: svc}
}

func seedDocument(t *testing.T, registry *fakeRegistry, docID string) {
	t.Helper()
	err := registry.Upsert(context.Background(), &models.Document{
		ID:         docID,
		Filename:   docID + ".pdf",
		Status:     models.StatusPending,
		UploadedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestIngestHappyPath(t *testing.T) {
	text := strings.Repeat("Experienced engineer with Go and distributed systems background. ", 5)
	gen := &scriptGenerator{responses: []string{"yes", "A CV for a software engineer."}}
	fx := newIngestFixture(t, &stubExtractor{text: text}, gen)
	seedDocument(t, fx.registry, "doc-1")

	result, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if result.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", result.Status)
	}
	if !result.IsCV {
		t.Fatal("expected document to be classified as CV")
	}
	if result.Summary != "A CV for a software engineer." {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if result.ChunkCount < 2 {
		t.Fatalf("expected multiple chunks, got %d", result.ChunkCount)
	}

	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusCompleted || doc.ProcessedAt == nil {
		t.Fatalf("committed record incomplete: %+v", doc)
	}
	if doc.ChunkCount != result.ChunkCount {
		t.Fatalf("chunk count mismatch: record %d, result %d", doc.ChunkCount, result.ChunkCount)
	}

	query, _ := fx.embedder.EmbedQuery(context.Background(), "Go experience")
	results, err := fx.index.Query(context.Background(), "doc-1", query, 3)
	if err != nil {
		t.Fatalf("index not queryable after ingest: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results from freshly indexed document")
	}
}

func TestIngestRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	extractor := &gateExtractor{started: started, release: release, text: "slow document text content here"}

	gen := &scriptGenerator{responses: []string{"no", "A slow document."}}
	fx := newIngestFixture(t, extractor, gen)
	seedDocument(t, fx.registry, "doc-1")

	done := make(chan error, 1)
	go func() {
		_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
		done <- err
	}()

	<-started
	_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
	if !errors.Is(err, ErrConcurrentIngestion) {
		t.Fatalf("expected ErrConcurrentIngestion, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first ingestion should have succeeded: %v", err)
	}

	// The slot is free again once the first run finishes.
	gen.mu.Lock()
	gen.responses = []string{"no", "A slow document."}
	gen.mu.Unlock()
	if _, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake")); err != nil {
		t.Fatalf("re-ingestion after completion failed: %v", err)
	}
}

type gateExtractor struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	text    string
}

func (e *gateExtractor) Extract(raw []byte) (string, error) {
	e.once.Do(func() {
		close(e.started)
		<-e.release
	})
	return e.text, nil
}

func TestIngestEmbeddingFailureKeepsPriorIndexedState(t *testing.T) {
	gen := &scriptGenerator{}
	fx := newIngestFixture(t, &stubExtractor{text: "replacement content that never commits"}, gen)
	fx.svc.embedder = &failingEmbedder{dims: 8}

	// Previously committed state.
	seedDocument(t, fx.registry, "doc-1")
	fx.registry.SetStatus(context.Background(), "doc-1", models.StatusCompleted, "")
	oldVec, _ := fx.embedder.EmbedQuery(context.Background(), "old chunk")
	fx.index.Upsert(context.Background(), "doc-1", []vector.Entry{
		{ChunkID: 0, Text: "old chunk", Vector: oldVec},
	})

	_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}

	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if doc.ErrorMessage == "" {
		t.Fatal("failed record should carry an error message")
	}

	// The old collection is still what queries see.
	results, err := fx.index.Query(context.Background(), "doc-1", oldVec, 5)
	if err != nil {
		t.Fatalf("prior collection gone after failed run: %v", err)
	}
	if len(results) != 1 || results[0].Text != "old chunk" {
		t.Fatalf("prior collection modified by failed run: %v", results)
	}
}

type failingEmbedder struct {
	dims int
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding backend down")
}

func (e *failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func (e *failingEmbedder) Dimensions() int {
	return e.dims
}

func TestIngestClassifierFailureMarksRecordFailed(t *testing.T) {
	gen := &scriptGenerator{err: errors.New("backend down")}
	fx := newIngestFixture(t, &stubExtractor{text: "some document text"}, gen)
	seedDocument(t, fx.registry, "doc-1")

	_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}

	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	// Semantic fields are only written at commit, never by a failed run.
	if doc.IsCV || doc.Summary != "" || doc.ChunkCount != 0 {
		t.Fatalf("failed run leaked semantic fields into the record: %+v", doc)
	}
}

// failStatusRegistry fails the write for one specific status transition.
type failStatusRegistry struct {
	*fakeRegistry
	failOn string
}

func (r *failStatusRegistry) SetStatus(ctx context.Context, docID, status, errorMessage string) error {
	if status == r.failOn {
		return errors.New("registry write timed out")
	}
	return r.fakeRegistry.SetStatus(ctx, docID, status, errorMessage)
}

func TestIngestStatusWriteFailureMarksRecordFailed(t *testing.T) {
	gen := &scriptGenerator{responses: []string{"no", "A document."}}
	fx := newIngestFixture(t, &stubExtractor{text: "some document text"}, gen)
	seedDocument(t, fx.registry, "doc-1")
	fx.svc.registry = &failStatusRegistry{fakeRegistry: fx.registry, failOn: models.StatusEmbedding}

	_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake"))
	if err == nil {
		t.Fatal("expected error from failed status write")
	}

	// The record must not stay stuck in an intermediate status.
	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if doc.ErrorMessage == "" {
		t.Fatal("failed record should carry an error message")
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	gen := &scriptGenerator{}
	fx := newIngestFixture(t, &stubExtractor{err: ErrExtraction}, gen)
	seedDocument(t, fx.registry, "doc-1")

	_, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("garbage"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}

	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if gen.calls != 0 {
		t.Fatalf("backend should not be called after extraction failure, got %d calls", gen.calls)
	}
}

func TestIngestUnknownDocument(t *testing.T) {
	fx := newIngestFixture(t, &stubExtractor{text: "text"}, &scriptGenerator{})
	_, err := fx.svc.Ingest(context.Background(), "missing", []byte("%PDF-fake"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	gen := &scriptGenerator{responses: []string{"no", "Some report."}}
	fx := newIngestFixture(t, &stubExtractor{text: "short report text"}, gen)
	seedDocument(t, fx.registry, "doc-1")

	if _, err := fx.svc.Ingest(context.Background(), "doc-1", []byte("%PDF-fake")); err != nil {
		t.Fatal(err)
	}

	if err := fx.svc.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	doc, _ := fx.registry.Get(context.Background(), "doc-1")
	if doc != nil {
		t.Fatal("registry record survived delete")
	}
	query, _ := fx.embedder.EmbedQuery(context.Background(), "report")
	if _, err := fx.index.Query(context.Background(), "doc-1", query, 1); !errors.Is(err, vector.ErrNoCollection) {
		t.Fatalf("collection survived delete: %v", err)
	}
}

func TestDeleteUnknownDocument(t *testing.T) {
	fx := newIngestFixture(t, &stubExtractor{text: "text"}, &scriptGenerator{})
	if err := fx.svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReprocessWithoutStoredFile(t *testing.T) {
	fx := newIngestFixture(t, &stubExtractor{text: "text"}, &scriptGenerator{})
	fx.registry.Upsert(context.Background(), &models.Document{
		ID:       "doc-1",
		FilePath: "/nonexistent/doc-1.pdf",
		Status:   models.StatusCompleted,
	})

	_, err := fx.svc.Reprocess(context.Background(), "doc-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing stored file, got %v", err)
	}
}
