package storage

import (
	"context"
	"log"
	"time"

	"actorscout/config"
	"actorscout/internal/discovery"
)

// RunRecord is the persisted summary of one discovery run.
type RunRecord struct {
	ID         string                  `json:"id"`
	UserIntent string                  `json:"user_intent"`
	MaxActors  int                     `json:"max_actors"`
	Records    []discovery.FinalRecord `json:"records"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Storage persists discovery run records. Persistence is best-effort and
// sits outside the discovery core; a failing sink never fails a run.
type Storage interface {
	SaveRunRecord(ctx context.Context, record RunRecord) error
	GetRunRecord(ctx context.Context, id string) (RunRecord, bool, error)
	Close() error
}

// NewStorage creates a storage instance. Postgres is preferred when
// configured; Redis is the fallback; with neither, records are not persisted.
func NewStorage(cfg config.StorageConfig) (Storage, error) {
	if cfg.Postgres.URL != "" || cfg.Postgres.Host != "" {
		ps, err := NewPostgresStorage(cfg.Postgres)
		if err == nil {
			return ps, nil
		}
		log.Printf("Warning: Postgres storage init failed: %v, falling back to Redis", err)
	}
	if cfg.Redis.Host != "" {
		rs, err := NewRedisStorage(cfg.Redis)
		if err == nil {
			return rs, nil
		}
		log.Printf("Warning: Redis storage init failed: %v, run records will not be persisted", err)
	}
	return noopStorage{}, nil
}

type noopStorage struct{}

func (noopStorage) SaveRunRecord(context.Context, RunRecord) error { return nil }
func (noopStorage) GetRunRecord(context.Context, string) (RunRecord, bool, error) {
	return RunRecord{}, false, nil
}
func (noopStorage) Close() error { return nil }
