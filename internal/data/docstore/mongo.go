package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const historyCollection = "draft_history"

// historyDoc stores the draft blob as a native document so it stays queryable.
type historyDoc struct {
	CourseID   int64     `bson:"course_id"`
	Version    int       `bson:"version"`
	SessionID  string    `bson:"session_id"`
	Status     string    `bson:"status"`
	Content    bson.M    `bson:"content"`
	ArchivedAt time.Time `bson:"archived_at"`
}

type MongoHistory struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *logger.Logger
}

func ConnectMongo(ctx context.Context, log *logger.Logger, uri, database string) (*MongoHistory, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	h := &MongoHistory{
		client:     client,
		collection: client.Database(database).Collection(historyCollection),
		log:        log.With("store", "MongoDraftHistory"),
	}
	if err := h.InitializeIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return h, nil
}

func (h *MongoHistory) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "course_id", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := h.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create draft history indexes: %w", err)
	}
	return nil
}

func (h *MongoHistory) Archive(ctx context.Context, snap DraftSnapshot) error {
	content := bson.M{}
	if len(snap.Content) > 0 {
		if err := json.Unmarshal(snap.Content, &content); err != nil {
			return fmt.Errorf("decode draft content: %w", err)
		}
	}
	doc := historyDoc{
		CourseID:   int64(snap.CourseID),
		Version:    snap.Version,
		SessionID:  snap.SessionID,
		Status:     snap.Status,
		Content:    content,
		ArchivedAt: snap.ArchivedAt,
	}
	filter := bson.M{"course_id": doc.CourseID, "version": doc.Version}
	_, err := h.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive draft: %w", err)
	}
	return nil
}

func (h *MongoHistory) List(ctx context.Context, courseID uint) ([]DraftSnapshot, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})
	cursor, err := h.collection.Find(ctx, bson.M{"course_id": int64(courseID)}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft history: %w", err)
	}
	defer cursor.Close(ctx)

	var out []DraftSnapshot
	for cursor.Next(ctx) {
		var doc historyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode draft history: %w", err)
		}
		raw, err := json.Marshal(doc.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, DraftSnapshot{
			CourseID:   uint(doc.CourseID),
			Version:    doc.Version,
			SessionID:  doc.SessionID,
			Status:     doc.Status,
			Content:    raw,
			ArchivedAt: doc.ArchivedAt,
		})
	}
	return out, cursor.Err()
}

func (h *MongoHistory) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}
