package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

// SQLiteCache stores lookups in a local SQLite file.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// NewSQLiteCache opens the database at dsn in WAL mode.
func NewSQLiteCache(dsn string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}, nil
}

// withPragmas appends connPragmas to dsn as _pragma query parameters. A dsn
// that already sets its own pragmas is left alone.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	params := make([]string, len(connPragmas))
	for i, p := range connPragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	key       TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	query     TEXT NOT NULL,
	matched   INTEGER NOT NULL,
	address   TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	lat       REAL NOT NULL DEFAULT 0,
	lng       REAL NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lookup_cache_cached_at ON lookup_cache(cached_at);
`

func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

func (s *SQLiteCache) Get(ctx context.Context, kind geocode.Kind, query string) (*geocode.Result, bool, error) {
	var (
		res      geocode.Result
		cachedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT matched, address, title, lat, lng, cached_at FROM lookup_cache WHERE key = ?`,
		geocode.CacheKey(kind, query),
	).Scan(&res.Matched, &res.Address, &res.Title, &res.Lat, &res.Lng, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get lookup")
	}
	if cachedAt.Before(cutoff(s.now().UTC(), s.ttl)) {
		return nil, false, nil
	}
	return &res, true, nil
}

func (s *SQLiteCache) Put(ctx context.Context, kind geocode.Kind, query string, res *geocode.Result) error {
	if res == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (key, kind, query, matched, address, title, lat, lng, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
			matched = excluded.matched,
			address = excluded.address,
			title = excluded.title,
			lat = excluded.lat,
			lng = excluded.lng,
			cached_at = excluded.cached_at`,
		geocode.CacheKey(kind, query), string(kind), query,
		res.Matched, res.Address, res.Title, res.Lat, res.Lng, s.now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put lookup")
}

// Purge deletes entries older than the TTL and returns how many were removed.
func (s *SQLiteCache) Purge(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_cache WHERE cached_at < ?`, cutoff(s.now().UTC(), s.ttl))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: purge rows affected")
}
