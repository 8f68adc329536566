package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per CNPJ in a collection
type MongoStore struct {
	coll   *mongo.Collection
	logger *logrus.Logger
}

type mongoEntry struct {
	CNPJ      string        `bson:"_id"`
	UpdatedAt time.Time     `bson:"updated_at"`
	Result    models.Result `bson:"result"`
}

// NewMongoStore creates a store backed by coll
func NewMongoStore(coll *mongo.Collection, logger *logrus.Logger) *MongoStore {
	return &MongoStore{
		coll:   coll,
		logger: logger,
	}
}

// Name implements Store
func (s *MongoStore) Name() string { return "mongo" }

// Load implements Store
func (s *MongoStore) Load(ctx context.Context) (Entries, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query cache collection: %w", err)
	}

	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode cache collection: %w", err)
	}

	entries := make(Entries, len(docs))
	for _, doc := range docs {
		entries[doc.CNPJ] = models.CacheEntry{
			UpdatedAt: doc.UpdatedAt.UTC(),
			Result:    doc.Result,
		}
	}

	s.logger.WithFields(logrus.Fields{
		"collection": s.coll.Name(),
		"entries":    len(entries),
	}).Debug("Cache loaded (MongoDB)")

	return entries, nil
}

// Save implements Store. Entries are upserted first and only then are
// documents absent from entries removed, so a failed write never leaves the
// collection emptier than before.
func (s *MongoStore) Save(ctx context.Context, entries Entries) error {
	keys := make([]string, 0, len(entries))

	if len(entries) > 0 {
		writes := make([]mongo.WriteModel, 0, len(entries))
		for cnpj, entry := range entries {
			keys = append(keys, cnpj)
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": cnpj}).
				SetReplacement(mongoEntry{
					CNPJ:      cnpj,
					UpdatedAt: entry.UpdatedAt,
					Result:    entry.Result,
				}).
				SetUpsert(true))
		}

		if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("failed to write cache collection: %w", err)
		}
	}

	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": keys}}); err != nil {
		return fmt.Errorf("failed to prune cache collection: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"collection": s.coll.Name(),
		"entries":    len(entries),
	}).Debug("Cache saved (MongoDB)")

	return nil
}
