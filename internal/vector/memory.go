package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index using brute-force cosine search.
// Collections are swapped wholesale under the lock, so readers never observe
// a partially replaced collection.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string][]Entry
	dimensions  int
}

// NewMemoryIndex creates an in-memory index for vectors of the given
// dimensionality.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		collections: make(map[string][]Entry),
		dimensions:  dimensions,
	}, nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, docID string, entries []Entry) error {
	if docID == "" {
		return fmt.Errorf("empty doc id")
	}
	fresh := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for chunk %d: got %d, expected %d", e.ChunkID, len(e.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		fresh[i] = Entry{ChunkID: e.ChunkID, Text: e.Text, Offset: e.Offset, Vector: vec}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fresh) == 0 {
		delete(m.collections, docID)
		return nil
	}
	m.collections[docID] = fresh
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, docID string, query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}

	m.mu.RLock()
	entries, ok := m.collections[docID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoCollection
	}
	return rank(entries, query, k), nil
}

func (m *MemoryIndex) Delete(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, docID)
	return nil
}

func (m *MemoryIndex) DocIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.collections))
	for id := range m.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
