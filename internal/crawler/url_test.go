package crawler

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"adds trailing slash", "https://forum.example.com/forum-1670", "https://forum.example.com/forum-1670/"},
		{"collapses slashes", "https://forum.example.com/forum-1670///", "https://forum.example.com/forum-1670/"},
		{"lowercases host", "HTTPS://Forum.Example.com/x/", "https://forum.example.com/x/"},
		{"bare host", "http://example.com", "http://example.com/"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeBaseURL(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := NormalizeBaseURL("ftp://example.com")
	require.Error(t, err)
	_, err = NormalizeBaseURL("/relative/path")
	require.Error(t, err)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	base := "https://forum.example.com/forum-1670/"
	require.Equal(t, base, PageURL(base, 1))
	for _, n := range []int{2, 10, 283} {
		require.Equal(t, base+"page/"+strconv.Itoa(n)+"/", PageURL(base, n))
	}
}

func TestSiteRoot(t *testing.T) {
	t.Parallel()

	root, err := SiteRoot("https://forum.example.com/forum-1670/page/3/")
	require.NoError(t, err)
	require.Equal(t, "https://forum.example.com/", root)
}
