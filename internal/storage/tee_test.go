package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/storage/memory"
)

type failingStore struct {
	runID string
}

func (f *failingStore) Write(context.Context, []crawler.PageRecord) error {
	return errors.New("mirror down")
}

func (f *failingStore) Path() string { return "failing://" }

func (f *failingStore) StartRun(runID string) { f.runID = runID }

func TestTeeMirrorFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	primary := memory.NewRecordStore()
	mirror := &failingStore{}
	tee := NewTee(primary, nil, mirror)
	tee.StartRun("run-7")

	require.NoError(t, tee.Write(context.Background(), []crawler.PageRecord{{Page: 1}}))
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, "run-7", mirror.runID)
	assert.Equal(t, primary.Path(), tee.Path())
}

func TestTeePrimaryFailureIsReturned(t *testing.T) {
	t.Parallel()

	mirror := memory.NewRecordStore()
	tee := NewTee(&failingStore{}, nil, mirror)

	require.Error(t, tee.Write(context.Background(), []crawler.PageRecord{{Page: 1}}))
	assert.Equal(t, 0, mirror.Len())
}
