package rag

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Backend on MongoDB Atlas with a $vectorSearch index.
type MongoStore struct {
	collection *mongo.Collection
	indexName  string
}

func NewMongoStore(db *mongo.Database, collection, indexName string) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	if collection == "" {
		return nil, errors.New("rag collection name is required")
	}
	if indexName == "" {
		indexName = "vector_index"
	}
	return &MongoStore{collection: db.Collection(collection), indexName: indexName}, nil
}

// EnsureSchema creates the Atlas vector search index with the probed
// dimensionality. Failures are ignored: the index may already exist or the
// cluster tier may not support search indexes.
func (ms *MongoStore) EnsureSchema(ctx context.Context, dim int) error {
	if ms == nil || ms.collection == nil || dim <= 0 {
		return nil
	}
	definition := bson.D{
		{Key: "fields", Value: bson.A{bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: "embedding"},
			{Key: "numDimensions", Value: dim},
			{Key: "similarity", Value: "cosine"},
		}}},
	}
	_ = ms.collection.Database().RunCommand(ctx, bson.D{
		{Key: "createSearchIndexes", Value: ms.collection.Name()},
		{Key: "indexes", Value: bson.A{bson.D{
			{Key: "name", Value: ms.indexName},
			{Key: "definition", Value: definition},
		}}},
	}).Err()
	return nil
}

func (ms *MongoStore) Upsert(ctx context.Context, rec Record) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	now := time.Now().UTC()
	rec.UpdatedAt = now
	set := bson.M{
		"text":       rec.Text,
		"embedding":  rec.Embedding,
		"metadata":   rec.Metadata,
		"updated_at": rec.UpdatedAt,
	}
	opts := options.Update().SetUpsert(true)
	_, err := ms.collection.UpdateByID(ctx, rec.ID, bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}, opts)
	return err
}

func (ms *MongoStore) Search(ctx context.Context, vector []float32, k, pool int) ([]Hit, error) {
	if ms == nil || ms.collection == nil || k <= 0 {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: ms.indexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: int64(pool)},
			{Key: "limit", Value: int64(k)},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "text", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
	cursor, err := ms.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []Hit
	for cursor.Next(ctx) {
		var doc struct {
			Text     string   `bson:"text"`
			Metadata Metadata `bson:"metadata"`
			Score    float64  `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Text: doc.Text, Metadata: doc.Metadata, Score: doc.Score})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (ms *MongoStore) DeleteDoc(ctx context.Context, docID string) (int64, error) {
	if ms == nil || ms.collection == nil {
		return 0, nil
	}
	res, err := ms.collection.DeleteMany(ctx, bson.M{"metadata.doc_id": docID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (ms *MongoStore) ListDocuments(ctx context.Context, limit, skip int) ([]DocumentInfo, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "metadata.doc_id", Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$metadata.doc_id"},
			{Key: "filename", Value: bson.D{{Key: "$first", Value: "$metadata.filename"}}},
			{Key: "source", Value: bson.D{{Key: "$first", Value: "$metadata.source"}}},
			{Key: "first_ingested", Value: bson.D{{Key: "$min", Value: "$metadata.ingested_at"}}},
			{Key: "last_ingested", Value: bson.D{{Key: "$max", Value: "$metadata.ingested_at"}}},
			{Key: "chunks", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "chars", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$strLenCP", Value: "$text"}}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_ingested", Value: -1}}}},
		{{Key: "$skip", Value: int64(skip)}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	cursor, err := ms.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []DocumentInfo
	for cursor.Next(ctx) {
		var doc struct {
			DocID         string    `bson:"_id"`
			Filename      string    `bson:"filename"`
			Source        string    `bson:"source"`
			FirstIngested time.Time `bson:"first_ingested"`
			LastIngested  time.Time `bson:"last_ingested"`
			Chunks        int       `bson:"chunks"`
			Chars         int       `bson:"chars"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		name := doc.Filename
		if name == "" {
			name = doc.DocID
		}
		out = append(out, DocumentInfo{
			DocID:         doc.DocID,
			Name:          name,
			Source:        doc.Source,
			FirstIngested: doc.FirstIngested,
			LastIngested:  doc.LastIngested,
			Chunks:        doc.Chunks,
			Chars:         doc.Chars,
		})
	}
	return out, cursor.Err()
}

func (ms *MongoStore) Stats(ctx context.Context) (Stats, error) {
	if ms == nil || ms.collection == nil {
		return Stats{}, nil
	}
	docs, err := ms.ListDocuments(ctx, 100000, 0)
	if err != nil {
		return Stats{}, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	week := today.AddDate(0, 0, -7)
	st := Stats{TotalDocs: len(docs)}
	for _, d := range docs {
		if d.FirstIngested.IsZero() {
			continue
		}
		if !d.FirstIngested.Before(today) {
			st.DocsToday++
		}
		if !d.FirstIngested.Before(week) {
			st.DocsWeek++
		}
	}
	return st, nil
}

func (ms *MongoStore) Count(ctx context.Context) (int, error) {
	if ms == nil || ms.collection == nil {
		return 0, nil
	}
	n, err := ms.collection.CountDocuments(ctx, bson.M{})
	return int(n), err
}
