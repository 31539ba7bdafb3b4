package services

import "errors"

// Typed pipeline failures. Every core operation fails fast with one of these
// in its chain (matchable via errors.Is); none are converted into a
// degraded-but-successful result.
var (
	// ErrExtraction: the upload is not a parseable PDF or contains no
	// extractable text.
	ErrExtraction = errors.New("text extraction failed")

	// ErrConfig: invalid chunking parameters (overlap >= size).
	ErrConfig = errors.New("invalid pipeline configuration")

	// ErrEmbedding: embedding backend failed after retries. Never defaulted
	// to a placeholder vector.
	ErrEmbedding = errors.New("embedding backend failed")

	// ErrGeneration: generation backend failed after retries.
	ErrGeneration = errors.New("generation backend failed")

	// ErrRetrieval: the vector index is unreachable. A document that simply
	// has no collection yet is not an error here; the answer engine treats
	// vector.ErrNoCollection as a no-information result.
	ErrRetrieval = errors.New("vector index unavailable")

	// ErrConcurrentIngestion: an ingestion for this document is already in
	// flight; the new request is rejected, not queued.
	ErrConcurrentIngestion = errors.New("ingestion already in progress for document")

	// ErrNotFound: no registry record for the document.
	ErrNotFound = errors.New("document not found")

	// ErrMaxWordsNotAllowed: max_words supplied for a non-CV document while
	// strict mode is enabled.
	ErrMaxWordsNotAllowed = errors.New("max_words is only supported for CV documents")
)
