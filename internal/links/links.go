// Package links scans crawl CSV files and turns rows that resolved to a
// magnet URI back into resource download URLs.
package links

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultOutput is the file download URLs are appended to.
const DefaultOutput = "torrent.txt"

var (
	fileNamePattern = regexp.MustCompile(`^(\d+)(?:_(\d+))?\.csv$`)
	magnetPattern   = regexp.MustCompile(`magnet:\?xt=urn:btih:[a-zA-Z0-9]+`)
	topicPattern    = regexp.MustCompile(`https?://[^\s,"]*?/(\d+)-t\.html`)
)

// Config describes one scan.
type Config struct {
	Dir             string
	Output          string
	ResourceBaseURL string
}

// FileCount is the per-file outcome of a scan.
type FileCount struct {
	Name  string
	Links int
	Err   error
}

// Report summarizes a scan.
type Report struct {
	Files  []FileCount
	Links  []string
	Output string
}

// Total returns the number of links found across all files.
func (r Report) Total() int {
	return len(r.Links)
}

// Scanner collects download URLs from CSV files.
type Scanner struct {
	cfg    Config
	logger *zap.Logger
}

// NewScanner validates cfg and returns a Scanner.
func NewScanner(cfg Config, logger *zap.Logger) (*Scanner, error) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	if cfg.ResourceBaseURL == "" {
		return nil, errors.New("resource base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, logger: logger}, nil
}

// Run scans every CSV file in the directory and appends the collected URLs
// to the output file. Unreadable files are reported and skipped.
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	names, err := csvFiles(s.cfg.Dir)
	if err != nil {
		return Report{}, err
	}

	report := Report{Output: s.cfg.Output}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		found, err := s.scanFile(filepath.Join(s.cfg.Dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable csv", zap.String("file", name), zap.Error(err))
		}
		report.Files = append(report.Files, FileCount{Name: name, Links: len(found), Err: err})
		report.Links = append(report.Links, found...)
	}

	if err := appendLines(s.cfg.Output, report.Links); err != nil {
		return report, err
	}
	s.logger.Info("link scan finished",
		zap.Int("files", len(report.Files)),
		zap.Int("links", report.Total()),
		zap.String("output", s.cfg.Output),
	)
	return report, nil
}

func (s *Scanner) scanFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var found []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return found, nil
		}
		if err != nil {
			return found, fmt.Errorf("read %s: %w", path, err)
		}
		line := strings.Join(row, " ")
		if !magnetPattern.MatchString(line) {
			continue
		}
		for _, m := range topicPattern.FindAllStringSubmatch(line, -1) {
			found = append(found, s.cfg.ResourceBaseURL+m[1]+".torrent")
		}
	}
}

func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	SortFiles(names)
	return names, nil
}

// SortFiles orders names like "1677.csv", "1677_0.csv", "1677_7.csv",
// "1680.csv": numeric base first, then suffix with the bare file leading.
// Names that don't follow the pattern go last in lexical order.
func SortFiles(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		ab, as := fileKey(a)
		bb, bs := fileKey(b)
		if ab != bb {
			if ab < bb {
				return -1
			}
			return 1
		}
		if as != bs {
			if as < bs {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
}

func fileKey(name string) (base, suffix int64) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return math.MaxInt64, -1
	}
	base, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return math.MaxInt64, -1
	}
	suffix = -1
	if m[2] != "" {
		if suffix, err = strconv.ParseInt(m[2], 10, 64); err != nil {
			suffix = -1
		}
	}
	return base, suffix
}

func appendLines(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // output is shared
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
