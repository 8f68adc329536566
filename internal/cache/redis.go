package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps the cache in a single Redis hash, one field per CNPJ
type RedisStore struct {
	client *redis.Client
	key    string
	logger *logrus.Logger
}

// NewRedisStore creates a store backed by the hash at key
func NewRedisStore(client *redis.Client, key string, logger *logrus.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Name implements Store
func (s *RedisStore) Name() string { return "redis" }

// Load implements Store. Fields that do not decode are skipped.
func (s *RedisStore) Load(ctx context.Context) (Entries, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache hash %s: %w", s.key, err)
	}

	entries := make(Entries, len(fields))
	for cnpj, raw := range fields {
		var entry models.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.logger.WithFields(logrus.Fields{
				"key":   s.key,
				"cnpj":  cnpj,
				"error": err.Error(),
			}).Warn("Skipping undecodable cache entry")
			continue
		}
		entries[cnpj] = entry
	}

	s.logger.WithFields(logrus.Fields{
		"key":     s.key,
		"entries": len(entries),
	}).Debug("Cache loaded (Redis)")

	return entries, nil
}

// Save implements Store. The hash is dropped and rewritten in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, entries Entries) error {
	values := make(map[string]interface{}, len(entries))
	for cnpj, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode cache entry %s: %w", cnpj, err)
		}
		values[cnpj] = string(data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache hash %s: %w", s.key, err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":     s.key,
		"entries": len(entries),
	}).Debug("Cache saved (Redis)")

	return nil
}
