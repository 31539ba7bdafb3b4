package models

import "time"

// Document is the registry record for an ingested PDF. IsCV, Summary and
// ChunkCount stay at their zero values until the first ingestion completes,
// and are overwritten wholesale on every reprocess.
type Document struct {
	ID           string     `bson:"_id" json:"id"`
	Filename     string     `bson:"filename" json:"filename"`
	FilePath     string     `bson:"file_path" json:"-"`
	Size         int64      `bson:"size" json:"size"`
	IsCV         bool       `bson:"is_cv" json:"is_cv"`
	Summary      string     `bson:"summary,omitempty" json:"summary,omitempty"`
	ChunkCount   int        `bson:"chunk_count" json:"chunk_count"`
	Status       string     `bson:"status" json:"status"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Ingestion pipeline states. Transitions are strictly sequential; Failed is
// reachable from any step.
const (
	StatusPending     = "pending"
	StatusExtracting  = "extracting"
	StatusChunking    = "chunking"
	StatusEmbedding   = "embedding"
	StatusIndexing    = "indexing"
	StatusClassifying = "classifying"
	StatusSummarizing = "summarizing"
	StatusCommitting  = "committing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// InFlight reports whether a status means an ingestion is currently running.
func InFlight(status string) bool {
	switch status {
	case StatusExtracting, StatusChunking, StatusEmbedding, StatusIndexing,
		StatusClassifying, StatusSummarizing, StatusCommitting:
		return true
	}
	return false
}
