package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"actorscout/config"
	"actorscout/internal/discovery"
)

// PostgresStorage persists run records in a single jsonb-backed table.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage opens the connection and ensures the schema exists.
func NewPostgresStorage(cfg config.PostgresConfig) (*PostgresStorage, error) {
	dsn := cfg.URL
	if dsn == "" {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, port, cfg.DBName, sslMode)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS discovery_runs (
    id          TEXT PRIMARY KEY,
    user_intent TEXT NOT NULL,
    max_actors  INT NOT NULL,
    records     JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// SaveRunRecord upserts one run record.
func (s *PostgresStorage) SaveRunRecord(ctx context.Context, record RunRecord) error {
	payload, err := json.Marshal(record.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO discovery_runs (id, user_intent, max_actors, records, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET records = EXCLUDED.records`,
		record.ID, record.UserIntent, record.MaxActors, payload, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// GetRunRecord loads one run record by ID.
func (s *PostgresStorage) GetRunRecord(ctx context.Context, id string) (RunRecord, bool, error) {
	var (
		record  RunRecord
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_intent, max_actors, records, created_at
FROM discovery_runs WHERE id = $1`, id).
		Scan(&record.ID, &record.UserIntent, &record.MaxActors, &payload, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("select run record: %w", err)
	}
	var records []discovery.FinalRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return RunRecord{}, false, fmt.Errorf("unmarshal records: %w", err)
	}
	record.Records = records
	return record, true, nil
}

// Close releases the database handle.
func (s *PostgresStorage) Close() error { return s.db.Close() }
