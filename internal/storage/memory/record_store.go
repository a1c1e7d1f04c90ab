// Package memory provides an in-memory record store for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// RecordStore keeps appended records in process memory.
type RecordStore struct {
	mu      sync.RWMutex
	records []crawler.PageRecord
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Write appends records in the order given.
func (s *RecordStore) Write(_ context.Context, records []crawler.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Path identifies the store in checkpoint payloads.
func (s *RecordStore) Path() string {
	return "memory://records"
}

// Records returns a copy of everything written so far.
func (s *RecordStore) Records() []crawler.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.PageRecord(nil), s.records...)
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
