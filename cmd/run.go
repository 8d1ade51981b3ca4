package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hannam-lab/markers-cli/internal/config"
	"github.com/hannam-lab/markers-cli/internal/export"
	"github.com/hannam-lab/markers-cli/internal/fetcher"
	"github.com/hannam-lab/markers-cli/internal/model"
	"github.com/hannam-lab/markers-cli/internal/pipeline"
	"github.com/hannam-lab/markers-cli/internal/resilience"
	"github.com/hannam-lab/markers-cli/internal/resolve"
	"github.com/hannam-lab/markers-cli/internal/stats"
	"github.com/hannam-lab/markers-cli/internal/store"
	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

var (
	runInput  string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve buildings and write markers and the neighborhood report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runInput != "" {
			cfg.Input.Path = runInput
		}
		if runOutput != "" {
			cfg.Output.MarkersPath = runOutput
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		client, err := geocode.NewClient(cfg.VWorld.Key,
			geocode.WithBaseURL(cfg.VWorld.BaseURL),
			geocode.WithTimeout(time.Duration(cfg.VWorld.TimeoutSecs)*time.Second),
		)
		if err != nil {
			return err
		}

		_, err = runMarkers(ctx, cfg, client)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "transaction table (.csv or .xlsx); overrides input.path")
	runCmd.Flags().StringVar(&runOutput, "output", "", "markers JSON path; overrides output.markers_path")
	rootCmd.AddCommand(runCmd)
}

// runMarkers loads the transactions, writes the neighborhood report, resolves
// every building and writes the marker outputs.
func runMarkers(ctx context.Context, cfg *config.Config, client geocode.Client) (*model.RunSummary, error) {
	policy, err := fetcher.ParsePolicy(cfg.Input.OnError)
	if err != nil {
		return nil, err
	}
	records, _, err := fetcher.LoadTransactions(ctx, cfg.Input.Path, fetcher.Options{
		Encoding: cfg.Input.Encoding,
		Sheet:    cfg.Input.Sheet,
		OnError:  policy,
	})
	if err != nil {
		return nil, eris.Wrap(err, "load transactions")
	}
	tx, err := store.NewTransactions(records)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded transactions", zap.String("path", cfg.Input.Path), zap.Int("records", tx.Len()))

	if cfg.Output.ReportPath != "" {
		if err := export.WriteReport(cfg.Output.ReportPath, stats.Report(tx.All())); err != nil {
			return nil, err
		}
		zap.L().Info("wrote neighborhood report", zap.String("path", cfg.Output.ReportPath))
	}

	names, err := loadNames(cfg.Resolve)
	if err != nil {
		return nil, err
	}

	cache, err := store.OpenCache(ctx, cfg.Cache.Driver, cfg.Cache.DatabaseURL, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	if err != nil {
		return nil, eris.Wrap(err, "open lookup cache")
	}
	opts := []pipeline.ResolverOption{
		pipeline.WithDelay(time.Duration(cfg.Resolve.DelayMs) * time.Millisecond),
		pipeline.WithNeighborhood(cfg.Resolve.Neighborhood),
		pipeline.WithRetry(resilience.NewPolicy(cfg.Resolve.Retry.MaxAttempts, cfg.Resolve.Retry.InitialBackoffMs)),
	}
	if cache != nil {
		defer cache.Close() //nolint:errcheck
		if n, err := cache.Purge(ctx); err != nil {
			zap.L().Warn("lookup cache purge failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("purged expired lookups", zap.Int("entries", n))
		}
		opts = append(opts, pipeline.WithCache(cache))
	}

	builder := pipeline.NewBuilder(pipeline.NewResolver(client, names, opts...), cfg.Resolve.Concurrency)
	result, err := builder.Build(ctx, stats.GroupByBuilding(tx.All()))
	if err != nil {
		return nil, err
	}

	if err := writeOutputs(cfg.Output, result.Buildings); err != nil {
		return nil, err
	}

	logSummary(result.Summary)
	return &result.Summary, nil
}

func loadNames(rc config.ResolveConfig) (*resolve.Names, error) {
	fromFile, err := resolve.LoadOverrides(rc.OverridesPath)
	if err != nil {
		return nil, err
	}
	names := resolve.New(resolve.Merge(resolve.Overrides{Aliases: rc.Aliases, Presets: rc.Presets}, fromFile))
	aliases, presets := names.Len()
	zap.L().Info("loaded name overrides", zap.Int("aliases", aliases), zap.Int("presets", presets))
	return names, nil
}

func writeOutputs(out config.OutputConfig, buildings map[string]model.EnrichedBuilding) error {
	if err := export.WriteMarkers(out.MarkersPath, buildings); err != nil {
		return err
	}
	zap.L().Info("wrote markers", zap.String("path", out.MarkersPath), zap.Int("buildings", len(buildings)))

	if out.GeoJSONPath != "" {
		if err := export.WriteGeoJSON(out.GeoJSONPath, buildings); err != nil {
			return err
		}
		zap.L().Info("wrote geojson", zap.String("path", out.GeoJSONPath))
	}
	if out.ShapefilePath != "" {
		if err := export.WriteShapefile(out.ShapefilePath, buildings); err != nil {
			return err
		}
		zap.L().Info("wrote shapefile", zap.String("path", out.ShapefilePath))
	}
	return nil
}

func logSummary(s model.RunSummary) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Int("total", s.Total),
		zap.Int("resolved", s.Resolved),
		zap.Int("unresolved", s.Unresolved),
		zap.Int("requests", s.Requests),
		zap.Int("cache_hits", s.CacheHits),
		zap.Duration("duration", s.Duration),
	}
	for _, tier := range model.AllTiers() {
		fields = append(fields, zap.Int("tier_"+string(tier), s.ByTier[tier]))
	}
	zap.L().Info("run complete", fields...)
	if len(s.UnresolvedNames) > 0 {
		zap.L().Info("unresolved buildings", zap.Strings("names", s.UnresolvedNames))
	}
}
