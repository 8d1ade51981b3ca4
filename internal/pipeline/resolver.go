// Package pipeline resolves building names to coordinates and assembles the
// enriched marker records.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hannam-lab/markers-cli/internal/model"
	"github.com/hannam-lab/markers-cli/internal/resilience"
	"github.com/hannam-lab/markers-cli/internal/resolve"
	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

// DefaultNeighborhood prefixes qualified place queries.
const DefaultNeighborhood = "용산구 한남동"

// DefaultDelay is the minimum spacing between two search requests.
const DefaultDelay = 350 * time.Millisecond

// Outcome is the result of resolving one building. Location is nil when every
// tier came back empty.
type Outcome struct {
	Location *model.ResolvedLocation
	Tier     model.Tier
	Attempts int
}

// Resolved reports whether a location was found.
func (o Outcome) Resolved() bool { return o.Location != nil }

// Resolver runs the preset, qualified and unqualified tiers for a building
// and stops at the first match. All network calls share one gate, so the
// request rate holds however many goroutines call Resolve.
type Resolver struct {
	client       geocode.Client
	names        *resolve.Names
	gate         *rate.Limiter
	cache        geocode.Cache
	retry        resilience.Policy
	neighborhood string

	requests  atomic.Int64
	cacheHits atomic.Int64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGate replaces the request gate.
func WithGate(l *rate.Limiter) ResolverOption {
	return func(r *Resolver) { r.gate = l }
}

// WithDelay sets a gate that allows one request per d.
func WithDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d <= 0 {
			r.gate = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.gate = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCache serves repeated queries from c.
func WithCache(c geocode.Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithRetry retries transient lookup failures per p.
func WithRetry(p resilience.Policy) ResolverOption {
	return func(r *Resolver) { r.retry = p }
}

// WithNeighborhood overrides DefaultNeighborhood.
func WithNeighborhood(n string) ResolverOption {
	return func(r *Resolver) {
		if n = resolve.Normalize(n); n != "" {
			r.neighborhood = n
		}
	}
}

// NewResolver builds a Resolver. names may be nil.
func NewResolver(client geocode.Client, names *resolve.Names, opts ...ResolverOption) *Resolver {
	if names == nil {
		names = resolve.New(resolve.Overrides{})
	}
	r := &Resolver{
		client:       client,
		names:        names,
		gate:         rate.NewLimiter(rate.Every(DefaultDelay), 1),
		retry:        resilience.NewPolicy(1, 0),
		neighborhood: DefaultNeighborhood,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type step struct {
	tier  model.Tier
	kind  geocode.Kind
	query string
}

func (r *Resolver) plan(name string) []step {
	res := r.names.Resolve(name)
	var steps []step
	if res.HasKnownAddress {
		steps = append(steps, step{model.TierPreset, geocode.KindAddress, res.KnownAddress})
	}
	return append(steps,
		step{model.TierQualified, geocode.KindPlace, r.neighborhood + " " + res.SearchName},
		step{model.TierUnqualified, geocode.KindPlace, res.SearchName},
	)
}

// Resolve finds a location for name. Lookup failures are logged and the next
// tier is tried; the only error returned is ctx's.
func (r *Resolver) Resolve(ctx context.Context, name string) (Outcome, error) {
	log := zap.L().With(zap.String("building", name))
	out := Outcome{Tier: model.TierNone}

	for _, s := range r.plan(name) {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "pipeline: resolve cancelled")
		}
		out.Attempts++

		res, err := r.lookup(ctx, s.kind, s.query)
		if err != nil {
			if ctx.Err() != nil {
				return out, eris.Wrap(ctx.Err(), "pipeline: resolve cancelled")
			}
			log.Warn("pipeline: lookup failed",
				zap.String("tier", string(s.tier)),
				zap.String("query", s.query),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
			continue
		}
		if !res.Matched {
			log.Debug("pipeline: no match", zap.String("tier", string(s.tier)), zap.String("query", s.query))
			continue
		}

		out.Tier = s.tier
		out.Location = &model.ResolvedLocation{Address: res.Address, Lat: res.Lat, Lng: res.Lng}
		return out, nil
	}
	return out, nil
}

// lookup consults the cache, then the API behind the gate.
func (r *Resolver) lookup(ctx context.Context, kind geocode.Kind, query string) (*geocode.Result, error) {
	if r.cache != nil {
		res, ok, err := r.cache.Get(ctx, kind, query)
		if err != nil {
			zap.L().Warn("pipeline: cache read failed", zap.String("query", query), zap.Error(err))
		} else if ok {
			r.cacheHits.Add(1)
			zap.L().Debug("pipeline: cache hit", zap.String("kind", string(kind)), zap.String("query", query))
			return res, nil
		}
	}

	policy := r.retry
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry(zap.L(), string(kind)+" lookup")
	}
	res, err := resilience.Do(ctx, policy, func(ctx context.Context) (*geocode.Result, error) {
		if err := r.gate.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: gate wait")
		}
		r.requests.Add(1)
		if kind == geocode.KindAddress {
			return r.client.LookupAddress(ctx, query)
		}
		return r.client.LookupPlace(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = geocode.NotFound()
	}

	if r.cache != nil {
		if !res.Cacheable() {
			zap.L().Debug("pipeline: result not cached", zap.String("kind", string(kind)), zap.String("query", query))
			return res, nil
		}
		if err := r.cache.Put(ctx, kind, query, res); err != nil {
			zap.L().Warn("pipeline: cache write failed", zap.String("query", query), zap.Error(err))
		}
	}
	return res, nil
}

// Counters returns the number of network requests made and cache hits served.
func (r *Resolver) Counters() (requests, cacheHits int) {
	return int(r.requests.Load()), int(r.cacheHits.Load())
}
