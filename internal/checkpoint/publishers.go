package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Multi publishes to every publisher and joins their errors, so one failing
// target keeps the checkpoint pending for all of them.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, cp Checkpoint) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, cp); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// LogPublisher only logs checkpoints.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher builds a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, cp Checkpoint) error {
	p.logger.Info(cp.Message,
		zap.String("run_id", cp.RunID),
		zap.Int("sequence", cp.Sequence),
		zap.Int("records", cp.Records),
		zap.String("store_path", cp.StorePath),
		zap.Bool("final", cp.Final),
	)
	return nil
}
