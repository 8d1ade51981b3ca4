package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache stores lookup results, matched or not, keyed by kind and query.
// Get reports ok=false on a miss or an expired entry.
type Cache interface {
	Get(ctx context.Context, kind Kind, query string) (res *Result, ok bool, err error)
	Put(ctx context.Context, kind Kind, query string, res *Result) error
}

// CacheKey returns the SHA-256 hex of kind and the normalized query.
func CacheKey(kind Kind, query string) string {
	h := sha256.Sum256([]byte(string(kind) + "|" + strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(h[:])
}
