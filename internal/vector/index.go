// Package vector provides per-document vector collections with top-k cosine
// similarity search. Each document owns exactly one collection; upsert
// replaces the collection's contents atomically from the reader's
// perspective.
package vector

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrNoCollection is returned by Query when the document has no collection.
// This is an expected condition (nothing indexed yet), not a transport
// failure.
var ErrNoCollection = errors.New("no vector collection for document")

// Entry is one indexed chunk: its stable ordering index, text and vector.
type Entry struct {
	ChunkID int
	Text    string
	Offset  int
	Vector  []float32
}

// Result is one retrieved chunk, best matches first.
type Result struct {
	ChunkID int
	Text    string
	Score   float64
}

// Index is a per-document vector store.
//
// Upsert replaces the whole collection for docID; a concurrent Query on the
// same docID observes either the fully-old or the fully-new contents, never a
// mix. Query returns at most k results ordered by descending similarity with
// ties broken by lower ChunkID, and ErrNoCollection when nothing has been
// indexed for docID. Delete is idempotent.
type Index interface {
	Upsert(ctx context.Context, docID string, entries []Entry) error
	Query(ctx context.Context, docID string, query []float32, k int) ([]Result, error)
	Delete(ctx context.Context, docID string) error
	DocIDs(ctx context.Context) ([]string, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 for
// mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank scores entries against the query vector and returns the top k,
// best-first, ties by lower chunk id.
func rank(entries []Entry, query []float32, k int) []Result {
	if k <= 0 || len(entries) == 0 {
		return nil
	}
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = Result{
			ChunkID: e.ChunkID,
			Text:    e.Text,
			Score:   CosineSimilarity(query, e.Vector),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
