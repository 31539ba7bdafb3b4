package services

import (
	"context"
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/vector"
	"docqa-platform/models"
)

// StaleIngestionAfter is how long a record may sit in an in-flight status
// before SweepStale treats its run as dead. Comfortably above the pipeline
// timeout so a slow live run is never reset.
const StaleIngestionAfter = 3 * ingestTimeout

// Sweeper removes orphaned vector collections, ones whose document no longer
// has a registry record. Orphans can appear when a delete removed the record
// but crashed before the collection, so the sweep restores the invariant that
// every collection belongs to a registered document.
type Sweeper struct {
	registry DocumentRegistry
	index    vector.Index
}

func NewSweeper(registry DocumentRegistry, index vector.Index) *Sweeper {
	return &Sweeper{registry: registry, index: index}
}

// stalePurger is implemented by index backends that can accumulate rows no
// active collection references, such as leftovers from a write that failed
// mid-replacement.
type stalePurger interface {
	PurgeStaleChunks(ctx context.Context) (int, error)
}

// SweepOrphans returns the number of collections removed.
func (s *Sweeper) SweepOrphans(ctx context.Context) (int, error) {
	docIDs, err := s.index.DocIDs(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, docID := range docIDs {
		exists, err := s.registry.Exists(ctx, docID)
		if err != nil {
			return removed, err
		}
		if exists {
			continue
		}
		if err := s.index.Delete(ctx, docID); err != nil {
			logger.Error("failed to remove orphaned collection", "doc_id", docID, "error", err)
			continue
		}
		logger.Warn("removed orphaned vector collection", "doc_id", docID)
		removed++
	}

	if purger, ok := s.index.(stalePurger); ok {
		purged, err := purger.PurgeStaleChunks(ctx)
		if err != nil {
			logger.Error("failed to purge stale chunk rows", "error", err)
		} else if purged > 0 {
			logger.Warn("purged stale chunk rows", "rows", purged)
		}
	}
	return removed, nil
}

// SweepStale marks documents stuck in an in-flight status as failed when the
// record has not been touched for olderThan. A crashed run cannot release its
// status itself, and a stale in-flight status would block re-ingestion
// forever.
func (s *Sweeper) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	reset := 0
	for _, doc := range docs {
		if !models.InFlight(doc.Status) || doc.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.registry.SetStatus(ctx, doc.ID, models.StatusFailed, "ingestion interrupted"); err != nil {
			logger.Error("failed to reset stale document", "doc_id", doc.ID, "error", err)
			continue
		}
		logger.Warn("reset stale in-flight document", "doc_id", doc.ID, "stuck_in", doc.Status)
		reset++
	}
	return reset, nil
}
