// Package csvstore implements the append-only CSV record store.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Header is the first row of every store file.
var Header = []string{"Page", "Title", "URL", "Publisher", "Link"}

// CreateHook runs once when the store file did not exist before Open.
type CreateHook func(ctx context.Context, path string) error

// Store appends records to a CSV file.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// Open opens path for appending, creating it with a header row when absent.
// onCreate may be nil; its failure is returned since it configures how the
// new file is versioned.
func Open(ctx context.Context, path string, onCreate CreateHook, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("csv path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create csv directory: %w", err)
		}
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		created = true
	} else if err != nil {
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // the data file is meant to be shared
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	s := &Store{path: path, file: f, writer: csv.NewWriter(f)}

	if !created {
		logger.Info("appending to existing csv file", zap.String("path", path))
		return s, nil
	}
	if err := s.writeRows([][]string{Header}); err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Info("initialized new csv file", zap.String("path", path))
	if onCreate != nil {
		if err := onCreate(ctx, path); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv create hook: %w", err)
		}
	}
	return s, nil
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Write appends one row per record and flushes to the OS.
func (s *Store) Write(_ context.Context, records []crawler.PageRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row(r))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRows(rows)
}

// Close flushes and closes the file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	werr := s.writer.Error()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return werr
}

func (s *Store) writeRows(rows [][]string) error {
	if err := s.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// Row renders a record in column order.
func Row(r crawler.PageRecord) []string {
	return []string{strconv.Itoa(r.Page), r.Title, r.URL, r.Publisher, r.Link}
}
