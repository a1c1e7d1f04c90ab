// Package journal records every published checkpoint in a local SQLite
// database so the last committed position survives restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
)

// Journal implements checkpoint.Publisher over SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path. Use ":memory:" in tests.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer; an in-memory database also exists per connection.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) createTables(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT    NOT NULL,
	sequence   INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	last_page  INTEGER NOT NULL,
	final      INTEGER NOT NULL,
	store_path TEXT    NOT NULL,
	message    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_created_at ON checkpoints(created_at);`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create journal tables: %w", err)
	}
	return nil
}

// Publish upserts the checkpoint row.
func (j *Journal) Publish(ctx context.Context, cp checkpoint.Checkpoint) error {
	const query = `
INSERT INTO checkpoints (run_id, sequence, records, last_page, final, store_path, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id, sequence) DO UPDATE SET
	records = excluded.records,
	last_page = excluded.last_page,
	final = excluded.final,
	message = excluded.message,
	created_at = excluded.created_at`
	final := 0
	if cp.Final {
		final = 1
	}
	_, err := j.db.ExecContext(ctx, query,
		cp.RunID, cp.Sequence, cp.Records, cp.LastPage, final, cp.StorePath, cp.Message, cp.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Last returns the most recent checkpoint for storePath. ok is false when
// none was recorded.
func (j *Journal) Last(ctx context.Context, storePath string) (cp checkpoint.Checkpoint, ok bool, err error) {
	const query = `
SELECT run_id, sequence, records, last_page, final, store_path, message, created_at
FROM checkpoints WHERE store_path = ?
ORDER BY created_at DESC, sequence DESC LIMIT 1`
	var (
		final   int
		created int64
	)
	row := j.db.QueryRowContext(ctx, query, storePath)
	err = row.Scan(&cp.RunID, &cp.Sequence, &cp.Records, &cp.LastPage, &final, &cp.StorePath, &cp.Message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, fmt.Errorf("query last checkpoint: %w", err)
	}
	cp.Final = final == 1
	cp.CreatedAt = time.Unix(created, 0).UTC()
	return cp, true, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
