package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"actorscout/config"
)

// redisRecordTTL bounds how long run records are retained in Redis.
const redisRecordTTL = 30 * 24 * time.Hour

// RedisStorage persists run records as JSON values keyed by run ID.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStorage{client: client}, nil
}

func runRecordKey(id string) string { return "actorscout:run:" + id }

// SaveRunRecord stores one run record with a bounded TTL.
func (s *RedisStorage) SaveRunRecord(ctx context.Context, record RunRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := s.client.Set(ctx, runRecordKey(record.ID), payload, redisRecordTTL).Err(); err != nil {
		return fmt.Errorf("set run record: %w", err)
	}
	return nil
}

// GetRunRecord loads one run record by ID.
func (s *RedisStorage) GetRunRecord(ctx context.Context, id string) (RunRecord, bool, error) {
	payload, err := s.client.Get(ctx, runRecordKey(id)).Bytes()
	if err == redis.Nil {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("get run record: %w", err)
	}
	var record RunRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return RunRecord{}, false, fmt.Errorf("unmarshal run record: %w", err)
	}
	return record, true, nil
}

// Close releases the Redis client.
func (s *RedisStorage) Close() error { return s.client.Close() }
