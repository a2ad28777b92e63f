// Package pipeline exposes the three documented entry points consumed by
// a presentation layer (spec §6.1): LoadWarm, LoadCold, and
// AggregateSummaries. It is the glue tying adapters, ingest, pricing, and
// cache together; it holds no pipeline semantics of its own beyond that
// wiring.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/toktrack/usagepipe/adapters"
	"github.com/toktrack/usagepipe/aggregate"
	"github.com/toktrack/usagepipe/cache"
	"github.com/toktrack/usagepipe/config"
	"github.com/toktrack/usagepipe/ingest"
	"github.com/toktrack/usagepipe/logging"
	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/pipeerr"
	"github.com/toktrack/usagepipe/pricing"
)

// Result is the shape returned by LoadWarm and LoadCold: per-source daily
// summaries plus every warning accumulated along the way.
type Result struct {
	PerSource map[string][]models.DailySummary
	Warnings  []pipeerr.Warning
}

// Pipeline wires together the registered adapters, the ingest engine,
// the pricing resolver, and the per-source cache.
type Pipeline struct {
	engine   *ingest.Engine
	cache    *cache.SummaryCache
	resolver *pricing.Resolver
	loc      *time.Location
	adapters []adapters.Adapter
	offline  bool
}

// New builds a pipeline from cfg. loc is the location used for every
// local-calendar-day bucketing decision; the cmd package resolves it from
// the configured timezone (time.Local when none is set).
func New(cfg *config.Config, loc *time.Location) *Pipeline {
	return &Pipeline{
		engine:   ingest.NewEngine(cfg.Perf.WorkerCount),
		cache:    cache.New(cfg.Data.UserDataRoot),
		resolver: pricing.NewResolver(cfg.Data.UserDataRoot, cfg.Pricing.TTLOverride),
		loc:      loc,
		adapters: adapters.Registry(cfg.Data.AdapterPaths),
		offline:  cfg.Pricing.Offline,
	}
}

// HasFreshAll reports whether every registered adapter's cache is fresh;
// the presentation layer uses this to decide warm vs. cold (spec §6.1).
func (p *Pipeline) HasFreshAll() bool {
	for _, a := range p.adapters {
		if !p.cache.HasFresh(a.Name()) {
			return false
		}
	}
	return true
}

// LoadWarm loads cached past-day summaries and decodes only files touched
// since local midnight of yesterday, for every registered adapter.
func (p *Pipeline) LoadWarm(ctx context.Context) (Result, error) {
	since := ingest.SinceYesterdayLocal(p.loc)
	table := p.resolver.LoadCacheOnly()
	return p.run(ctx, table, func(a adapters.Adapter) (ingest.Result, error) {
		return p.engine.IngestRecent(ctx, a, since)
	})
}

// LoadCold fully enumerates and decodes every session file for every
// registered adapter. Pricing comes from Resolver.Load, which contacts
// the network only when the cached table is older than the TTL, unless
// the pipeline was built with Pricing.Offline set, in which case it uses
// whatever pricing is already cached.
func (p *Pipeline) LoadCold(ctx context.Context) (Result, error) {
	var table models.PricingTable
	if p.offline {
		table = p.resolver.LoadCacheOnly()
	} else {
		fetched, err := p.resolver.Load(ctx)
		if err != nil {
			return Result{}, err
		}
		table = fetched
	}
	return p.run(ctx, table, func(a adapters.Adapter) (ingest.Result, error) {
		return p.engine.IngestCold(ctx, a)
	})
}

func (p *Pipeline) run(
	ctx context.Context,
	table models.PricingTable,
	fetch func(adapters.Adapter) (ingest.Result, error),
) (Result, error) {
	perSource := make(map[string][]models.DailySummary, len(p.adapters))
	var warnings []pipeerr.Warning

	for _, a := range p.adapters {
		ingestResult, err := fetch(a)
		if err != nil {
			return Result{}, err
		}
		warnings = append(warnings, ingestResult.Warnings...)

		priced := pricing.ApplyPricing(ingestResult.Entries, table)

		summaries, cacheWarnings, err := p.cache.LoadOrCompute(a.Name(), priced, p.loc, func(e models.UsageEntry) float64 {
			return pricing.CostOf(e, table)
		})
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: %s: %w", a.Name(), err)
		}
		warnings = append(warnings, cacheWarnings...)

		perSource[a.Name()] = summaries
	}

	if len(perSource) == 0 {
		logging.LogWarn(pipeerr.ErrNoUsageData.Error())
	}

	return Result{PerSource: perSource, Warnings: warnings}, nil
}

// AggregateSummaries runs the cross-source Aggregator reductions over a
// LoadWarm/LoadCold result (spec §4.6): merged daily totals, per-model
// totals, and per-source totals.
func AggregateSummaries(result Result) (merged []models.DailySummary, byModel map[string]models.ModelStat, bySource []aggregate.SourceTotal) {
	merged = aggregate.MergeByDate(result.PerSource)
	byModel = aggregate.ByModelFromDaily(merged)
	bySource = aggregate.BySource(result.PerSource)
	return merged, byModel, bySource
}
