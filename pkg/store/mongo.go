package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mbolt/svgpress/pkg/errors"
)

// MongoConfig configures the Mongo-backed snapshot store.
type MongoConfig struct {
	// URI is the connection string, e.g. "mongodb://localhost:27017".
	URI string

	// Database name. Defaults to "svgpress".
	Database string

	// Collection name. Defaults to "snapshots".
	Collection string
}

// MongoStore persists snapshots in a MongoDB collection, for deployments
// where several exporters share state.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "svgpress"
	}
	if cfg.Collection == "" {
		cfg.Collection = "snapshots"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Save implements Store.
func (s *MongoStore) Save(ctx context.Context, snap *Snapshot) error {
	_, err := s.col.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: snap.ID}},
		snap,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "save snapshot %s", snap.ID)
	}
	return nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "load snapshot %s", id)
	}
	return &snap, nil
}

// Latest implements Store.
func (s *MongoStore) Latest(ctx context.Context, docID string) (*Snapshot, error) {
	var snap Snapshot
	err := s.col.FindOne(ctx,
		bson.D{{Key: "doc_id", Value: docID}},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots for document %s", docID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "load latest snapshot for %s", docID)
	}
	return &snap, nil
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context, docID string) ([]*Snapshot, error) {
	cur, err := s.col.Find(ctx,
		bson.D{{Key: "doc_id", Value: docID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "list snapshots for %s", docID)
	}
	var snaps []*Snapshot
	if err := cur.All(ctx, &snaps); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, err, "decode snapshots for %s", docID)
	}
	if len(snaps) == 0 {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots for document %s", docID)
	}
	return snaps, nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := s.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, err, "delete snapshot %s", id)
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
