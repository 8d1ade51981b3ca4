package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hannam-lab/markers-cli/internal/model"
	"github.com/hannam-lab/markers-cli/internal/stats"
)

// Result is the output of one Build.
type Result struct {
	Buildings map[string]model.EnrichedBuilding
	Summary   model.RunSummary
}

// Builder resolves every building group and attaches its statistics.
type Builder struct {
	resolver    *Resolver
	concurrency int
}

// NewBuilder returns a Builder. concurrency below 2 processes buildings one
// at a time, in name order.
func NewBuilder(resolver *Resolver, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Builder{resolver: resolver, concurrency: concurrency}
}

// Build resolves each group once. Unresolved buildings are left out of
// Buildings and named in the summary. Build fails only when ctx is done.
func (b *Builder) Build(ctx context.Context, groups []model.BuildingGroup) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: resolving buildings", zap.Int("buildings", len(groups)), zap.Int("concurrency", b.concurrency))

	outcomes := make([]Outcome, len(groups))
	var err error
	if b.concurrency == 1 {
		err = b.sequential(ctx, groups, outcomes)
	} else {
		err = b.parallel(ctx, groups, outcomes)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Buildings: make(map[string]model.EnrichedBuilding, len(groups)),
		Summary: model.RunSummary{
			RunID:  runID,
			Total:  len(groups),
			ByTier: make(map[model.Tier]int),
		},
	}
	for i, g := range groups {
		o := outcomes[i]
		if !o.Resolved() {
			result.Summary.Unresolved++
			result.Summary.UnresolvedNames = append(result.Summary.UnresolvedNames, g.Name)
			continue
		}
		result.Summary.Resolved++
		result.Summary.ByTier[o.Tier]++
		result.Buildings[g.Name] = Enrich(g, *o.Location)
	}
	result.Summary.Requests, result.Summary.CacheHits = b.resolver.Counters()
	result.Summary.Duration = time.Since(start)
	return result, nil
}

func (b *Builder) sequential(ctx context.Context, groups []model.BuildingGroup, outcomes []Outcome) error {
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: build cancelled")
		}
		o, err := b.resolveOne(ctx, g)
		if err != nil {
			return err
		}
		outcomes[i] = o
	}
	return nil
}

func (b *Builder) parallel(ctx context.Context, groups []model.BuildingGroup, outcomes []Outcome) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, group := range groups {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, err := b.resolveOne(gCtx, group)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: build cancelled")
	}
	return nil
}

func (b *Builder) resolveOne(ctx context.Context, g model.BuildingGroup) (Outcome, error) {
	o, err := b.resolver.Resolve(ctx, g.Name)
	if err != nil {
		return o, err
	}
	log := zap.L().With(zap.String("building", g.Name))
	if !o.Resolved() {
		log.Info("pipeline: building unresolved", zap.Int("attempts", o.Attempts), zap.Int("deals", len(g.Records)))
		return o, nil
	}
	log.Info("pipeline: building resolved",
		zap.String("tier", string(o.Tier)),
		zap.String("address", o.Location.Address),
		zap.Float64("lat", o.Location.Lat),
		zap.Float64("lng", o.Location.Lng),
	)
	return o, nil
}

// Enrich combines a building's transactions with its location.
func Enrich(g model.BuildingGroup, loc model.ResolvedLocation) model.EnrichedBuilding {
	return model.EnrichedBuilding{
		Name:           g.Name,
		Address:        loc.Address,
		Lat:            loc.Lat,
		Lng:            loc.Lng,
		Areas:          stats.DistinctAreas(g.Records),
		LatestAvgPrice: stats.LatestAvgPrice(g.Records),
		PeriodStats:    stats.BuildingSeries(g.Records),
		Deals:          stats.SortedDeals(g.Records),
	}
}
