package memory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists memory in the mem_profiles and mem_summaries
// collections.
type MongoStore struct {
	profiles  *mongo.Collection
	summaries *mongo.Collection
}

func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	return &MongoStore{
		profiles:  db.Collection("mem_profiles"),
		summaries: db.Collection("mem_summaries"),
	}, nil
}

// EnsureIndexes creates the lookup indexes. Safe to call on every boot.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.summaries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_key", Value: 1}, {Key: "updated_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

func (s *MongoStore) GetProfile(ctx context.Context, userKey string) (Profile, error) {
	var p Profile
	err := s.profiles.FindOne(ctx, bson.M{"user_key": userKey}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{UserKey: userKey}, nil
	}
	return p, err
}

func (s *MongoStore) PutProfile(ctx context.Context, p Profile) error {
	p.UpdatedAt = time.Now().UTC()
	opts := options.Update().SetUpsert(true)
	_, err := s.profiles.UpdateOne(ctx, bson.M{"user_key": p.UserKey}, bson.M{"$set": p}, opts)
	return err
}

func (s *MongoStore) RecentSummaries(ctx context.Context, userKey string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 5
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.summaries.Find(ctx, bson.M{"user_key": userKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Summary
	for cursor.Next(ctx) {
		var sum Summary
		if err := cursor.Decode(&sum); err != nil {
			return nil, err
		}
		if sum.Summary != "" {
			out = append(out, sum)
		}
	}
	return out, cursor.Err()
}

func (s *MongoStore) UpsertSummary(ctx context.Context, sum Summary) error {
	if sum.UpdatedAt.IsZero() {
		sum.UpdatedAt = time.Now().UTC()
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.summaries.UpdateOne(ctx,
		bson.M{"conversation_id": sum.ConversationID},
		bson.M{"$set": sum}, opts)
	return err
}

var _ Store = (*MongoStore)(nil)
