// Package postgres mirrors crawled records into a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

const defaultTable = "listing_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordStore writes each appended batch in one transaction.
type RecordStore struct {
	pool  txPool
	table string

	mu    sync.RWMutex
	runID string
}

// New connects to Postgres and makes sure the table exists.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool txPool, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the record table when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	page        INTEGER NOT NULL,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL,
	publisher   TEXT NOT NULL,
	link        TEXT NOT NULL,
	link_status TEXT NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// StartRun tags subsequent rows with runID.
func (s *RecordStore) StartRun(runID string) {
	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
}

// Path identifies the mirror in logs.
func (s *RecordStore) Path() string {
	return "postgres://" + s.table
}

// Write inserts the batch atomically.
func (s *RecordStore) Write(ctx context.Context, records []crawler.PageRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.RLock()
	runID := s.runID
	s.mu.RUnlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, page, title, url, publisher, link, link_status)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.table)

	for _, r := range records {
		if _, err := tx.Exec(ctx, query, runID, r.Page, r.Title, r.URL, r.Publisher, r.Link, string(r.LinkStatus)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert record for page %d: %w", r.Page, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
