package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

// LookupCache is a persistent geocode.Cache.
type LookupCache interface {
	geocode.Cache
	Migrate(ctx context.Context) error
	// Purge deletes entries older than the TTL and reports how many went.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// OpenCache opens the lookup cache for driver ("sqlite" or "postgres") and
// applies its migration. An empty driver disables caching and returns nil.
func OpenCache(ctx context.Context, driver, dsn string, ttl time.Duration) (LookupCache, error) {
	var (
		c   LookupCache
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		c, err = NewSQLiteCache(dsn, ttl)
	case "postgres", "postgresql":
		c, err = NewPostgresCache(ctx, dsn, ttl)
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// cutoff returns the oldest cached_at still considered fresh. A zero ttl
// keeps entries forever.
func cutoff(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(-ttl)
}
