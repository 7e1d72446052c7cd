package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const createSamplesTable = `CREATE TABLE IF NOT EXISTS latency_samples (
    id          BIGSERIAL PRIMARY KEY,
    stream      TEXT        NOT NULL,
    millis      NUMERIC(12,2) NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink stores samples in latency_samples.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(databaseURL string) (*PostgresSink, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSamplesTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create latency_samples: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSink) Append(ctx context.Context, stream string, millis float64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := validStream(stream); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO latency_samples (stream, millis) VALUES ($1, $2)`,
		strings.TrimSpace(stream), FormatMillis(millis),
	)
	return err
}
