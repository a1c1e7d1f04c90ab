package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NormalizeBaseURL validates a listing base URL and guarantees exactly one
// trailing slash so page suffixes can be appended verbatim.
func NormalizeBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must be http or https", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	return u.String(), nil
}

// PageURL maps a page number onto the listing: page 1 is the bare base URL,
// page N>1 is base + "page/N/". base must already be normalized.
func PageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	return base + "page/" + strconv.Itoa(page) + "/"
}

// SiteRoot returns scheme://host/ for the given URL.
func SiteRoot(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Host), nil
}
