// Package sha1 digests bencoded info dictionaries into BitTorrent info-hashes.
package sha1

import (
	"crypto/sha1" //nolint:gosec // BitTorrent v1 info-hashes are defined as SHA-1.
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-1.
type Hasher struct{}

// New returns a SHA-1 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha1.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
