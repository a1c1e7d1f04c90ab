package extractor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

const (
	testBase         = "https://forum.example.com/forum-1670/"
	testResourceBase = "https://files.example.com/torrent/files/"
)

type fakeResolver struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeResolver) Resolve(_ context.Context, downloadURL string) crawler.Resolution {
	f.mu.Lock()
	f.seen = append(f.seen, downloadURL)
	f.mu.Unlock()
	if downloadURL == "" {
		return crawler.Resolution{Status: crawler.LinkNone}
	}
	return crawler.Resolution{Link: "magnet:?xt=urn:btih:" + downloadURL, Status: crawler.LinkResolved}
}

func newExtractor(t *testing.T, res crawler.Resolver) *Extractor {
	t.Helper()
	e, err := New(Config{BaseURL: testBase, ResourceBaseURL: testResourceBase}, res, nil)
	require.NoError(t, err)
	return e
}

const listingHTML = `<html><body><table>
<tr id="tr-1">
  <td><a class="torTopic bold tt-text" href="/forum-1670/111-t.html"> First Title </a></td>
  <td><div class="topicAuthor"><a class="topicAuthor" href="/u/1"> alice </a></div></td>
</tr>
<tr id="tr-2">
  <td><span>no title here</span></td>
</tr>
<tr id="tr-3">
  <td><a class="torTopic bold tt-text" href="news/about.html">Announcement</a></td>
</tr>
<tr id="tr-4">
  <td><a class="torTopic bold tt-text">No href</a></td>
</tr>
<tr id="tr-5">
  <td><a class="torTopic bold tt-text" href="https://forum.example.com/forum-1670/222-t.html">Second</a></td>
  <td><div class="topicAuthor"><a class="topicAuthor">bob</a></div></td>
</tr>
<tr class="header"><td><a class="torTopic bold tt-text" href="/x/999-t.html">not a row</a></td></tr>
</table></body></html>`

func TestExtractParsesRowsInMarkupOrder(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{}
	records, err := newExtractor(t, res).Extract(context.Background(), 7, []byte(listingHTML))
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, crawler.PageRecord{
		Page:       7,
		Title:      "First Title",
		URL:        "https://forum.example.com/forum-1670/111-t.html",
		Publisher:  "alice",
		Link:       "magnet:?xt=urn:btih:" + testResourceBase + "111.torrent",
		LinkStatus: crawler.LinkResolved,
	}, records[0])

	assert.Equal(t, "Announcement", records[1].Title)
	assert.Equal(t, "https://forum.example.com/forum-1670/news/about.html", records[1].URL)
	assert.Equal(t, crawler.DefaultPublisher, records[1].Publisher)
	assert.Empty(t, records[1].Link)
	assert.Equal(t, crawler.LinkNone, records[1].LinkStatus)

	assert.Equal(t, "Second", records[2].Title)
	assert.Equal(t, "bob", records[2].Publisher)
	assert.Equal(t, testResourceBase+"222.torrent", res.seen[2])
}

func TestExtractWithoutRowsIsEmpty(t *testing.T) {
	t.Parallel()

	records, err := newExtractor(t, &fakeResolver{}).Extract(context.Background(), 1, []byte("<html><body><p>maintenance</p></body></html>"))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExtractStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExtractor(t, &fakeResolver{}).Extract(ctx, 1, []byte(listingHTML))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCustomSelectors(t *testing.T) {
	t.Parallel()

	e, err := New(Config{
		BaseURL:           testBase,
		ResourceBaseURL:   "https://files.example.com/t",
		RowSelector:       "li.item",
		TitleSelector:     "a.title",
		PublisherSelector: "span.by",
	}, &fakeResolver{}, nil)
	require.NoError(t, err)

	html := `<ul><li class="item"><a class="title" href="/forum-1670/5-t.html">T</a><span class="by">carol</span></li></ul>`
	records, err := e.Extract(context.Background(), 2, []byte(html))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "carol", records[0].Publisher)
	assert.Equal(t, "magnet:?xt=urn:btih:https://files.example.com/t/5.torrent", records[0].Link)
}

func TestTopicID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://forum.example.com/forum-1670/12345-t.html": "12345",
		"/forum-1670/7-t.html":                              "7",
		"https://forum.example.com/forum-1670/abc-t.html":   "",
		"https://forum.example.com/forum-1670/12345-t.htm":  "",
		"https://forum.example.com/forum-1670/12345.html":   "",
		"https://forum.example.com/12345-t.html?x=1":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, TopicID(in), in)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: testBase}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "not a url"}, &fakeResolver{}, nil)
	require.Error(t, err)
}
