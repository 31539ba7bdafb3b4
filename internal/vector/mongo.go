package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndex stores every document's chunks in a shared collection with a
// mandatory doc_id filter on all reads, emulating one collection per
// document. Replacement is atomic for readers: new rows are written under a
// fresh generation tag, the per-document metadata row is flipped to point at
// it, and only then are the stale generation's rows removed. A reader that
// resolved the old generation still sees a complete set until the flip.
type MongoIndex struct {
	chunks     *mongo.Collection
	meta       *mongo.Collection
	dimensions int
}

type chunkRow struct {
	DocID      string    `bson:"doc_id"`
	Generation string    `bson:"generation"`
	ChunkID    int       `bson:"chunk_id"`
	Text       string    `bson:"text"`
	Offset     int       `bson:"offset"`
	Vector     []float32 `bson:"vector"`
}

type metaRow struct {
	DocID      string    `bson:"_id"`
	Generation string    `bson:"generation"`
	ChunkCount int       `bson:"chunk_count"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func NewMongoIndex(db *mongo.Database, chunksCollection, metaCollection string, dimensions int) *MongoIndex {
	return &MongoIndex{
		chunks:     db.Collection(chunksCollection),
		meta:       db.Collection(metaCollection),
		dimensions: dimensions,
	}
}

func (m *MongoIndex) Upsert(ctx context.Context, docID string, entries []Entry) error {
	if docID == "" {
		return fmt.Errorf("empty doc id")
	}
	if len(entries) == 0 {
		return m.Delete(ctx, docID)
	}

	generation := uuid.NewString()
	rows := make([]interface{}, len(entries))
	for i, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for chunk %d: got %d, expected %d", e.ChunkID, len(e.Vector), m.dimensions)
		}
		rows[i] = chunkRow{
			DocID:      docID,
			Generation: generation,
			ChunkID:    e.ChunkID,
			Text:       e.Text,
			Offset:     e.Offset,
			Vector:     e.Vector,
		}
	}

	if _, err := m.chunks.InsertMany(ctx, rows); err != nil {
		// Leave the half-written generation in place; the active generation
		// is untouched. The next successful upsert or PurgeStaleChunks
		// removes it.
		return fmt.Errorf("insert chunk rows: %w", err)
	}

	_, err := m.meta.ReplaceOne(ctx,
		bson.M{"_id": docID},
		metaRow{DocID: docID, Generation: generation, ChunkCount: len(entries), UpdatedAt: time.Now()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("activate generation: %w", err)
	}

	// Drop all rows that are not the active generation, including leftovers
	// from earlier failed upserts.
	_, err = m.chunks.DeleteMany(ctx, bson.M{
		"doc_id":     docID,
		"generation": bson.M{"$ne": generation},
	})
	if err != nil {
		return fmt.Errorf("remove stale generation: %w", err)
	}
	return nil
}

func (m *MongoIndex) Query(ctx context.Context, docID string, query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}

	var meta metaRow
	err := m.meta.FindOne(ctx, bson.M{"_id": docID}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoCollection
	}
	if err != nil {
		return nil, fmt.Errorf("resolve active generation: %w", err)
	}

	cursor, err := m.chunks.Find(ctx, bson.M{
		"doc_id":     docID,
		"generation": meta.Generation,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch chunk rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []chunkRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode chunk rows: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{ChunkID: r.ChunkID, Text: r.Text, Offset: r.Offset, Vector: r.Vector}
	}
	return rank(entries, query, k), nil
}

func (m *MongoIndex) Delete(ctx context.Context, docID string) error {
	if _, err := m.meta.DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
		return fmt.Errorf("delete collection meta: %w", err)
	}
	if _, err := m.chunks.DeleteMany(ctx, bson.M{"doc_id": docID}); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}
	return nil
}

func (m *MongoIndex) DocIDs(ctx context.Context) ([]string, error) {
	raw, err := m.meta.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// PurgeStaleChunks removes chunk rows no active generation references: rows
// tagged with a generation other than the meta row's, and rows for documents
// without any meta row. Such rows accumulate when an upsert fails after
// inserting the new generation but before flipping the meta row, and they are
// invisible to DocIDs, which lists meta rows only. Returns the number of rows
// removed.
func (m *MongoIndex) PurgeStaleChunks(ctx context.Context) (int, error) {
	raw, err := m.chunks.Distinct(ctx, "doc_id", bson.M{})
	if err != nil {
		return 0, fmt.Errorf("list chunk doc ids: %w", err)
	}

	removed := 0
	for _, v := range raw {
		docID, ok := v.(string)
		if !ok {
			continue
		}

		filter := bson.M{"doc_id": docID}
		var meta metaRow
		err := m.meta.FindOne(ctx, bson.M{"_id": docID}).Decode(&meta)
		switch {
		case err == mongo.ErrNoDocuments:
			// No active generation, every row for this document is stale.
		case err != nil:
			return removed, fmt.Errorf("resolve active generation: %w", err)
		default:
			filter["generation"] = bson.M{"$ne": meta.Generation}
		}

		res, err := m.chunks.DeleteMany(ctx, filter)
		if err != nil {
			return removed, fmt.Errorf("purge stale chunk rows: %w", err)
		}
		removed += int(res.DeletedCount)
	}
	return removed, nil
}
