package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

// Pool is the subset of pgxpool.Pool the cache uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCache stores lookups in a shared Postgres table.
type PostgresCache struct {
	pool Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresCache connects a small pool; the cache is only touched once per
// lookup so a handful of connections is plenty.
func NewPostgresCache(ctx context.Context, connString string, ttl time.Duration) (*PostgresCache, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresCache{pool: pool, ttl: ttl, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	key       TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	query     TEXT NOT NULL,
	matched   BOOLEAN NOT NULL,
	address   TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	lat       DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng       DOUBLE PRECISION NOT NULL DEFAULT 0,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_cached_at ON lookup_cache(cached_at);`

func (s *PostgresCache) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresCache) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresCache) Get(ctx context.Context, kind geocode.Kind, query string) (*geocode.Result, bool, error) {
	var res geocode.Result
	err := s.pool.QueryRow(ctx,
		`SELECT matched, address, title, lat, lng FROM lookup_cache WHERE key = $1 AND cached_at >= $2`,
		geocode.CacheKey(kind, query), cutoff(s.now().UTC(), s.ttl),
	).Scan(&res.Matched, &res.Address, &res.Title, &res.Lat, &res.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get lookup")
	}
	return &res, true, nil
}

func (s *PostgresCache) Put(ctx context.Context, kind geocode.Kind, query string, res *geocode.Result) error {
	if res == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lookup_cache (key, kind, query, matched, address, title, lat, lng, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (key) DO UPDATE SET
			matched = EXCLUDED.matched,
			address = EXCLUDED.address,
			title = EXCLUDED.title,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			cached_at = EXCLUDED.cached_at`,
		geocode.CacheKey(kind, query), string(kind), query,
		res.Matched, res.Address, res.Title, res.Lat, res.Lng, s.now().UTC(),
	)
	return eris.Wrap(err, "postgres: put lookup")
}

func (s *PostgresCache) Purge(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM lookup_cache WHERE cached_at < $1`, cutoff(s.now().UTC(), s.ttl))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge lookups")
	}
	return int(tag.RowsAffected()), nil
}
