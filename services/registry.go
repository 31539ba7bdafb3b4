package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-platform/internal/config"
	"docqa-platform/models"
)

// DocumentRegistry is the authoritative record store for document metadata.
// Get returns (nil, nil) when no record exists so callers can distinguish
// absence from storage failure.
type DocumentRegistry interface {
	Get(ctx context.Context, docID string) (*models.Document, error)
	Exists(ctx context.Context, docID string) (bool, error)
	Upsert(ctx context.Context, doc *models.Document) error
	SetStatus(ctx context.Context, docID, status, errorMessage string) error
	Delete(ctx context.Context, docID string) error
	List(ctx context.Context) ([]models.Document, error)
}

type MongoRegistry struct {
	col *mongo.Collection
}

func NewMongoRegistry(db *mongo.Database) *MongoRegistry {
	return &MongoRegistry{col: db.Collection(config.DocumentsCollection)}
}

func (r *MongoRegistry) Get(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document record: %w", err)
	}
	return &doc, nil
}

func (r *MongoRegistry) Exists(ctx context.Context, docID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": docID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check document record: %w", err)
	}
	return n > 0, nil
}

// Upsert replaces the whole record. Partial field updates go through
// SetStatus; everything else is written as one consistent snapshot at commit
// time.
func (r *MongoRegistry) Upsert(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now()
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert document record: %w", err)
	}
	return nil
}

func (r *MongoRegistry) SetStatus(ctx context.Context, docID, status, errorMessage string) error {
	update := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMessage != "" {
		update["error_message"] = errorMessage
	} else if status != models.StatusFailed {
		update["error_message"] = ""
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": docID}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return nil
}

func (r *MongoRegistry) Delete(ctx context.Context, docID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return nil
}

func (r *MongoRegistry) List(ctx context.Context) ([]models.Document, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"uploaded_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("list document records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode document records: %w", err)
	}
	return docs, nil
}
