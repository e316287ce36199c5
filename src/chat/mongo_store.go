package chat

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists conversations and messages in separate collections.
type MongoStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	return &MongoStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}, nil
}

// EnsureIndexes creates the listing and history indexes. Safe on every boot.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_key", Value: 1}}},
		{Keys: bson.D{{Key: "deleted_at", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (s *MongoStore) EnsureConversation(ctx context.Context, id, titleSeed, userKey string) (string, error) {
	if id != "" {
		if oid, err := objectID(id); err == nil {
			res := s.conversations.FindOne(ctx, bson.M{"_id": oid},
				options.FindOne().SetProjection(bson.M{"_id": 1}))
			if res.Err() == nil {
				return id, nil
			}
			if !errors.Is(res.Err(), mongo.ErrNoDocuments) {
				return "", res.Err()
			}
		}
	}

	now := time.Now().UTC()
	doc := bson.M{
		"title":      TitleFrom(titleSeed),
		"created_at": now,
		"updated_at": now,
	}
	if userKey != "" {
		doc["user_key"] = userKey
	}
	res, err := s.conversations.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	oid, err := objectID(conversationID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := s.messages.InsertOne(ctx, bson.M{
		"conversation_id": oid,
		"role":            role,
		"content":         content,
		"created_at":      now,
	}); err != nil {
		return err
	}
	_, err = s.conversations.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"updated_at": now}})
	return err
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (Conversation, []Message, error) {
	oid, err := objectID(id)
	if err != nil {
		return Conversation{}, nil, err
	}

	var conv Conversation
	err = s.conversations.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Conversation{}, nil, ErrNotFound
	}
	if err != nil {
		return Conversation{}, nil, err
	}
	if conv.DeletedAt != nil {
		return Conversation{}, nil, ErrNotFound
	}
	conv.ID = id

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": oid}, opts)
	if err != nil {
		return Conversation{}, nil, err
	}
	defer cursor.Close(ctx)

	var msgs []Message
	for cursor.Next(ctx) {
		var m Message
		if err := cursor.Decode(&m); err != nil {
			return Conversation{}, nil, err
		}
		msgs = append(msgs, m)
	}
	return conv, msgs, cursor.Err()
}

func (s *MongoStore) ListConversations(ctx context.Context) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"deleted_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Conversation
	for cursor.Next(ctx) {
		var doc struct {
			ID           primitive.ObjectID `bson:"_id"`
			Conversation `bson:",inline"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conv := doc.Conversation
		conv.ID = doc.ID.Hex()
		out = append(out, conv)
	}
	return out, cursor.Err()
}

func (s *MongoStore) DeleteConversation(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return nil
	}
	_, err = s.conversations.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"deleted_at": time.Now().UTC()},
	})
	return err
}

var _ Store = (*MongoStore)(nil)
