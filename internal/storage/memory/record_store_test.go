package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

func TestRecordStoreKeepsOrder(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	require.NoError(t, s.Write(context.Background(), []crawler.PageRecord{{Page: 3, Title: "a"}, {Page: 3, Title: "b"}}))
	require.NoError(t, s.Write(context.Background(), []crawler.PageRecord{{Page: 2, Title: "c"}}))

	got := s.Records()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Title, got[1].Title, got[2].Title})
	assert.Equal(t, 3, s.Len())

	got[0].Title = "mutated"
	assert.Equal(t, "a", s.Records()[0].Title)
}
