package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	args := m.Called(ctx, req.URL)
	return args.Get(0).(FetchResponse), args.Error(1)
}

// MockExtractor is a mock implementation of the Extractor interface.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, page int, html []byte) ([]PageRecord, error) {
	args := m.Called(ctx, page, html)
	recs, _ := args.Get(0).([]PageRecord)
	return recs, args.Error(1)
}

// recordingSleeper returns immediately and remembers every requested delay.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// memorySink captures appended batches in order.
type memorySink struct {
	mu        sync.Mutex
	batches   [][]PageRecord
	flushes   int
	appendErr map[int]error
}

func (s *memorySink) Append(_ context.Context, records []PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendErr[records[0].Page]; err != nil {
		return err
	}
	s.batches = append(s.batches, append([]PageRecord(nil), records...))
	return nil
}

func (s *memorySink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memorySink) pageOrder() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, b := range s.batches {
		out = append(out, b[0].Page)
	}
	return out
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }
