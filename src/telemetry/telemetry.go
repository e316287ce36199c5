// Package telemetry records coarse usage events for later analysis.
// Recording is strictly best-effort: a broken sink must never affect a chat
// turn.
package telemetry

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Recorder accepts events. Implementations swallow their own errors.
type Recorder interface {
	Record(ctx context.Context, event string, data map[string]any)
}

// Noop drops every event. Used when no sink is configured.
type Noop struct{}

func (Noop) Record(context.Context, string, map[string]any) {}

// MongoRecorder appends events to the telemetry collection.
type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	if db == nil {
		return nil
	}
	return &MongoRecorder{collection: db.Collection("telemetry")}
}

func (r *MongoRecorder) Record(ctx context.Context, event string, data map[string]any) {
	if r == nil || r.collection == nil {
		return
	}
	doc := bson.M{"event": event, "ts": time.Now().UTC()}
	if len(data) > 0 {
		doc["data"] = data
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		log.Printf("telemetry: record %s: %v", event, err)
	}
}

var (
	_ Recorder = Noop{}
	_ Recorder = (*MongoRecorder)(nil)
)
