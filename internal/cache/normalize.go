package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases the query and collapses all whitespace runs to a
// single space. Exact-match lookups compare normalized forms only.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Fingerprint returns the cache key for a normalized query.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// TokenSet splits a normalized query into its unique word set.
func TokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard computes token-set similarity: |intersection| / |union|.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
