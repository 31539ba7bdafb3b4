package models

// Chunk is a bounded slice of a document's extracted text, the unit of
// embedding and retrieval. ChunkID is the stable ordering index within the
// document; Offset is the rune position in the source text (debug/overlap
// bookkeeping only).
type Chunk struct {
	ChunkID int    `bson:"chunk_id" json:"chunk_id"`
	Text    string `bson:"text" json:"text"`
	Offset  int    `bson:"offset" json:"offset"`
}

// AskRequest is the body of a question against a single document.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	MaxWords int    `json:"max_words,omitempty"`
}

// AskResponse carries the grounded answer plus the document's CV flag.
type AskResponse struct {
	Answer string `json:"answer"`
	IsCV   bool   `json:"is_cv"`
}

// IngestResponse is returned by ingest and reprocess operations.
type IngestResponse struct {
	ID         string `json:"id"`
	IsCV       bool   `json:"is_cv"`
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}
