// Package fingerprint derives content-addressed cache keys for extracted
// articles and stores analysis results under them with a TTL.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// sampleLen bounds how much of the article text participates in the digest.
// Trailing edits to a page do not invalidate the fingerprint; leading edits do.
const sampleLen = 1000

// digestLen is the number of hex characters kept from the digest.
const digestLen = 16

// KindDeepDive namespaces reconciled deep-dive results within the store.
const KindDeepDive = "deep-dive"

// Key derives a deterministic fingerprint from a page URL and its extracted
// text. Identical (url, first-1000-chars) pairs always produce the same key.
func Key(url, text string) string {
	sample := text
	if len(sample) > sampleLen {
		sample = sample[:sampleLen]
	}
	sum := sha256.Sum256([]byte(sample))
	return url + "::" + hex.EncodeToString(sum[:])[:digestLen]
}

// KeyWithKind suffixes a fingerprint with a result kind so different result
// types can share one article fingerprint without colliding.
func KeyWithKind(url, text, kind string) string {
	return Key(url, text) + ":" + kind
}

// Store persists values under fingerprint keys with lazy TTL expiry. Entries
// are never swept by the store itself; staleness is checked on read.
type Store interface {
	// Get returns the stored value and true iff the key exists and is fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes or overwrites the value under key with the given ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Valid reports whether the key exists and is fresh, without reading it.
	Valid(ctx context.Context, key string) (bool, error)
}
