package gamedb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	gamesCollection   = "games"
	uploadsCollection = "uploads"
)

// MongoStore 基于 MongoDB 的存储
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo 连接 MongoDB 并检查连通性
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB 失败: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) games() *mongo.Collection { return s.db.Collection(gamesCollection) }

func (s *MongoStore) Find(ctx context.Context, gameID, altGameID string) (*Game, error) {
	filter := bson.M{"gameID": gameID}
	if altGameID != "" {
		filter = bson.M{"$or": bson.A{bson.M{"gameID": gameID}, bson.M{"altGameID": altGameID}}}
	}
	var game Game
	if err := s.games().FindOne(ctx, filter).Decode(&game); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &game, nil
}

func (s *MongoStore) Upsert(ctx context.Context, games []Game) error {
	for start := 0; start < len(games); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(games))
		models := make([]mongo.WriteModel, 0, end-start)
		for _, g := range games[start:end] {
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"gameID": g.GameID}).
				SetReplacement(g).
				SetUpsert(true))
		}
		if _, err := s.games().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("写入 games 集合失败: %w", err)
		}
	}
	return nil
}

func (s *MongoStore) HasTable(ctx context.Context) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": gamesCollection})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (s *MongoStore) DropTable(ctx context.Context) error {
	return s.games().Drop(ctx)
}

func (s *MongoStore) RecordUpload(ctx context.Context, rec UploadRecord) error {
	_, err := s.db.Collection(uploadsCollection).InsertOne(ctx, rec)
	return err
}

func (s *MongoStore) RecentUploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Collection(uploadsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []UploadRecord
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []UploadRecord{}
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
