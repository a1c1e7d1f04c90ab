// Package gcs uploads a snapshot of the record store to Google Cloud Storage
// at every checkpoint.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
)

const defaultPrefix = "snapshots"

// Config captures the target bucket and object prefix.
type Config struct {
	Bucket string
	Prefix string
}

// Publisher implements checkpoint.Publisher.
type Publisher struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New creates a GCS snapshot publisher.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// ObjectName is where the snapshot for cp is stored.
func (p *Publisher) ObjectName(cp checkpoint.Checkpoint) string {
	run := cp.RunID
	if run == "" {
		run = "unknown-run"
	}
	return path.Join(p.prefix, run, fmt.Sprintf("%06d-%s", cp.Sequence, filepath.Base(cp.StorePath)))
}

// Publish copies the store file into the bucket. Re-publishing a sequence
// overwrites the same object.
func (p *Publisher) Publish(ctx context.Context, cp checkpoint.Checkpoint) error {
	f, err := os.Open(cp.StorePath)
	if err != nil {
		return fmt.Errorf("open store snapshot: %w", err)
	}
	defer f.Close()

	name := p.ObjectName(cp)
	writer := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "text/csv"
	writer.Metadata = map[string]string{
		"run_id":    cp.RunID,
		"sequence":  strconv.Itoa(cp.Sequence),
		"records":   strconv.Itoa(cp.Records),
		"last_page": strconv.Itoa(cp.LastPage),
		"final":     strconv.FormatBool(cp.Final),
	}
	if _, err := io.Copy(writer, f); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("copy snapshot: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	p.logger.Info("snapshot uploaded", zap.String("object", fmt.Sprintf("gs://%s/%s", p.bucket, name)))
	return nil
}
