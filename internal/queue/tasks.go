package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docqa-platform/internal/logger"
	"docqa-platform/services"
)

const (
	TaskIngestDocument = "doc:ingest"
	TaskSweepOrphans   = "index:sweep"
)

type IngestPayload struct {
	DocID    string `json:"doc_id"`
	FilePath string `json:"file_path"`
}

// NewIngestTask enqueues a full pipeline run for an uploaded document. The
// payload carries the stored file path rather than the bytes so large uploads
// never pass through Redis.
func NewIngestTask(docID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{DocID: docID, FilePath: filePath})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(
		TaskSweepOrphans,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor wires the queue handlers to the ingestion pipeline.
type TaskProcessor struct {
	ingest  *services.IngestService
	files   *services.FileStore
	sweeper *services.Sweeper
}

func NewTaskProcessor(ingest *services.IngestService, files *services.FileStore, sweeper *services.Sweeper) *TaskProcessor {
	return &TaskProcessor{ingest: ingest, files: files, sweeper: sweeper}
}

func (p *TaskProcessor) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestDocument, p.HandleIngestTask)
	mux.HandleFunc(TaskSweepOrphans, p.HandleSweepTask)
}

func (p *TaskProcessor) HandleIngestTask(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	raw, err := p.files.Read(payload.FilePath)
	if err != nil {
		return fmt.Errorf("read stored upload for %s: %v: %w", payload.DocID, err, asynq.SkipRetry)
	}

	result, err := p.ingest.Ingest(ctx, payload.DocID, raw)
	if err != nil {
		// Another run for the same document is already in flight; retrying
		// would only collide with it again.
		if errors.Is(err, services.ErrConcurrentIngestion) {
			logger.Warn("skipping queued ingestion, document already in flight", "doc_id", payload.DocID)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		// A broken PDF never gets better on retry.
		if errors.Is(err, services.ErrExtraction) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("queued ingestion finished",
		"doc_id", payload.DocID,
		"is_cv", result.IsCV,
		"chunks", result.ChunkCount,
	)
	return nil
}

func (p *TaskProcessor) HandleSweepTask(ctx context.Context, t *asynq.Task) error {
	removed, err := p.sweeper.SweepOrphans(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Info("orphan sweep removed collections", "count", removed)
	}

	reset, err := p.sweeper.SweepStale(ctx, services.StaleIngestionAfter)
	if err != nil {
		return err
	}
	if reset > 0 {
		logger.Info("stale sweep reset documents", "count", reset)
	}
	return nil
}
