// Package git commits and pushes the record store after each checkpoint.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
)

// Runner executes a git subcommand in dir.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner shells out to the git binary.
type ExecRunner struct{}

// Run implements Runner. The returned string holds combined stdout and stderr.
func (ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Config controls the repository and what is pushed.
type Config struct {
	Dir        string
	RemotePush bool
	LFS        bool
}

// Publisher implements checkpoint.Publisher with git add/commit/push.
type Publisher struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

// New builds a Publisher. runner defaults to ExecRunner.
func New(cfg Config, runner Runner, logger *zap.Logger) *Publisher {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, runner: runner, logger: logger}
}

// TrackLFS registers path with git LFS. It is meant to run once, when the
// store file is first created.
func (p *Publisher) TrackLFS(ctx context.Context, path string) error {
	if !p.cfg.LFS {
		return nil
	}
	if out, err := p.runner.Run(ctx, p.cfg.Dir, "lfs", "track", path); err != nil {
		return fmt.Errorf("git lfs track %s: %w: %s", path, err, strings.TrimSpace(out))
	}
	p.logger.Info("configured git lfs tracking", zap.String("path", path))
	return nil
}

// Publish stages the store file, commits with the checkpoint message, and
// pushes. An empty commit is a successful no-op and skips the push.
func (p *Publisher) Publish(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.StorePath == "" {
		return errors.New("checkpoint has no store path")
	}
	if out, err := p.runner.Run(ctx, p.cfg.Dir, "add", cp.StorePath); err != nil {
		return fmt.Errorf("git add: %w: %s", err, strings.TrimSpace(out))
	}
	out, err := p.runner.Run(ctx, p.cfg.Dir, "commit", "-m", cp.Message)
	if err != nil {
		if nothingToCommit(out) {
			p.logger.Warn("no changes to commit", zap.String("message", cp.Message))
			return nil
		}
		return fmt.Errorf("git commit: %w: %s", err, strings.TrimSpace(out))
	}
	if p.cfg.RemotePush {
		if out, err := p.runner.Run(ctx, p.cfg.Dir, "push"); err != nil {
			return fmt.Errorf("git push: %w: %s", err, strings.TrimSpace(out))
		}
	}
	p.logger.Info("git commit successful", zap.String("message", cp.Message))
	return nil
}

func nothingToCommit(out string) bool {
	return strings.Contains(out, "nothing to commit") ||
		strings.Contains(out, "nothing added to commit") ||
		strings.Contains(out, "no changes added to commit")
}
