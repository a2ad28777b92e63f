// Package ingest implements the IngestEngine component (spec §4.4):
// cold and warm file collection/decode over a SourceAdapter, with
// parallel per-file decode and cross-file dedup.
package ingest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toktrack/usagepipe/adapters"
	"github.com/toktrack/usagepipe/logging"
	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/pipeerr"
)

// Engine runs adapters through parallel decode. It holds no state beyond
// the configured worker count and is safe to reuse across adapters.
type Engine struct {
	workers int
}

// NewEngine creates an engine with workers sized to available cores when
// workers <= 0, mirroring the teacher's concurrent loader default.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{workers: workers}
}

// Result bundles the decoded entries for one adapter with any per-file
// warnings accumulated along the way (spec §6.5: record-level and
// file-level decode errors are swallowed per-item, not fatal).
type Result struct {
	Entries  []models.UsageEntry
	Warnings []pipeerr.Warning
}

// IngestCold implements ingest_cold: enumerate every file the adapter
// knows about, decode in parallel, concatenate, and dedup across files.
func (e *Engine) IngestCold(ctx context.Context, a adapters.Adapter) (Result, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return Result{}, err
	}
	return e.decodeAll(ctx, a, files)
}

// IngestRecent implements ingest_recent: only files touched at or after
// since, which callers must compute DST-safely (see SinceYesterdayLocal).
func (e *Engine) IngestRecent(ctx context.Context, a adapters.Adapter, since time.Time) (Result, error) {
	files, err := a.EnumerateRecent(since)
	if err != nil {
		return Result{}, err
	}
	return e.decodeAll(ctx, a, files)
}

func (e *Engine) decodeAll(ctx context.Context, a adapters.Adapter, files []string) (Result, error) {
	if len(files) == 0 {
		return Result{}, nil
	}

	type fileOutcome struct {
		entries  []models.UsageEntry
		warning  *pipeerr.Warning
		warnings []pipeerr.Warning
	}
	outcomes := make([]fileOutcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			entries, err := a.DecodeFile(path)
			if err != nil {
				w := pipeerr.NewWarning(pipeerr.KindDecodeFile, a.Name(), fmt.Sprintf("skipping %s", path), err)
				logging.LogWarn(w.Error())
				outcomes[i] = fileOutcome{warning: &w}
				return nil
			}

			var valid []models.UsageEntry
			var recordWarnings []pipeerr.Warning
			for _, entry := range entries {
				if verr := entry.Validate(); verr != nil {
					w := pipeerr.NewWarning(pipeerr.KindDecodeRecord, a.Name(), fmt.Sprintf("dropping invalid record in %s", path), verr)
					logging.LogWarn(w.Error())
					recordWarnings = append(recordWarnings, w)
					continue
				}
				valid = append(valid, entry)
			}
			outcomes[i] = fileOutcome{entries: valid, warnings: recordWarnings}
			return nil
		})
	}

	// A cancelled context is the only condition under which decodeAll
	// itself fails; individual file errors are captured as warnings
	// above and never abort the group.
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var all []models.UsageEntry
	var warnings []pipeerr.Warning
	for _, o := range outcomes {
		if o.warning != nil {
			warnings = append(warnings, *o.warning)
			continue
		}
		all = append(all, o.entries...)
		warnings = append(warnings, o.warnings...)
	}

	return Result{Entries: dedupAcrossFiles(all), Warnings: warnings}, nil
}

func dedupAcrossFiles(entries []models.UsageEntry) []models.UsageEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.UsageEntry, 0, len(entries))
	for _, e := range entries {
		k := e.EntryKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SinceYesterdayLocal returns the local-midnight instant of yesterday in
// loc, computed DST-safely: it constructs the civil date first and lets
// the time package resolve the offset, rather than subtracting a fixed
// 24h duration from time.Now() (spec §4.4, Open Question #3).
func SinceYesterdayLocal(loc *time.Location) time.Time {
	today := models.Today(loc)
	yesterday := today.AddDays(-1)
	return yesterday.Midnight(loc)
}
