// Package storage implements the persisted schema on Postgres. The
// schema is applied as a single versioned migration step before the
// scheduler starts, never per-connection.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// psql builds placeholder-correct queries for Postgres.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects to Postgres and verifies the connection. An
// unreachable store at startup is fatal by contract; the caller exits
// non-zero.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// migrations are applied in order, once each, tracked in
// schema_migrations.
var migrations = []string{
	// 1: core tables
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		content TEXT,
		summary TEXT,
		source_url TEXT NOT NULL,
		topic TEXT,
		interest_score DOUBLE PRECISION,
		value_score DOUBLE PRECISION,
		novelty_score DOUBLE PRECISION,
		high_value BOOLEAN NOT NULL DEFAULT FALSE,
		feedback TEXT,
		favorite BOOLEAN NOT NULL DEFAULT FALSE,
		embedding BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS sources (
		url TEXT PRIMARY KEY,
		platform TEXT NOT NULL DEFAULT 'unknown',
		strategy TEXT NOT NULL DEFAULT 'html',
		discovery TEXT NOT NULL DEFAULT 'seed',
		parent_url TEXT,
		trust DOUBLE PRECISION NOT NULL DEFAULT 0.5 CHECK (trust >= 0.1 AND trust <= 1.0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_crawled_at TIMESTAMPTZ,
		total_docs INTEGER NOT NULL DEFAULT 0,
		high_value_docs INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS categories (
		key TEXT PRIMARY KEY,
		ordinal INTEGER NOT NULL,
		name TEXT NOT NULL,
		keywords TEXT[] NOT NULL DEFAULT '{}',
		base_weight DOUBLE PRECISION NOT NULL,
		learning_adjustment DOUBLE PRECISION NOT NULL DEFAULT 0,
		boost DOUBLE PRECISION NOT NULL DEFAULT 1,
		positive_count INTEGER NOT NULL DEFAULT 0,
		negative_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS feedback_events (
		id UUID PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		category TEXT,
		source_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS flagged_content (
		id BIGSERIAL PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		reason TEXT NOT NULL,
		severity INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 3),
		category TEXT,
		source_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS scheduler_state (
		task_name TEXT PRIMARY KEY,
		last_run TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS document_neighbors (
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		neighbor_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		similarity DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (document_id, neighbor_id)
	)`,
	// 2: query indexes
	`CREATE INDEX IF NOT EXISTS idx_documents_value_score ON documents(value_score);
	CREATE INDEX IF NOT EXISTS idx_documents_topic ON documents(topic);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_url);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_flagged_created ON flagged_content(created_at)`,
	// 3: feed-reported publication time
	`ALTER TABLE documents ADD COLUMN IF NOT EXISTS published_at TIMESTAMPTZ`,
}

// Migrate applies pending migrations inside a transaction each.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}
