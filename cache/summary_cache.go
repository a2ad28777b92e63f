// Package cache implements the SummaryCache component (spec §4.5): the
// per-source, on-disk JSON store of DailySummary values, guarded by a
// separate advisory lock file rather than a lock on the data file itself.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"syscall"
	"time"

	"github.com/toktrack/usagepipe/logging"
	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/pipeerr"
)

// CurrentVersion is bumped whenever an aggregation field is added or
// removed, the pricing formula changes, or the model normalizer output
// changes in a way that would silently re-key the models map.
const CurrentVersion = 1

// LockTimeout bounds how long load_or_compute waits for another process
// to release the per-source lock before failing the invocation.
const LockTimeout = 10 * time.Second

// SummaryCache persists DailySummary values for one source adapter.
type SummaryCache struct {
	root string // <user-data-root>/cache
}

// New creates a cache rooted at <userDataRoot>/cache.
func New(userDataRoot string) *SummaryCache {
	return &SummaryCache{root: filepath.Join(userDataRoot, "cache")}
}

func (c *SummaryCache) dataPath(source string) string {
	return filepath.Join(c.root, source+"_daily.json")
}

func (c *SummaryCache) lockPath(source string) string {
	return filepath.Join(c.root, source+"_daily.lock")
}

// HasFresh reports whether a cache file exists for source and carries
// CurrentVersion. Version is checked per source: a fresh cache for one
// adapter says nothing about another. It takes the same per-source lock
// as a write, so it never observes a torn write on filesystems where
// rename is not atomic with an open reader; a lock that cannot be
// acquired within LockTimeout is treated as "not fresh" rather than
// surfaced as an error, since callers fall back to a cold reload anyway.
func (c *SummaryCache) HasFresh(source string) bool {
	unlock, err := c.lock(source)
	if err != nil {
		return false
	}
	defer unlock()

	data, err := os.ReadFile(c.dataPath(source))
	if err != nil {
		return false
	}
	var file models.SourceCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return false
	}
	return file.Version == CurrentVersion
}

// Load reads the cache file for source and returns every summary whose
// date is strictly before today (local). On a version mismatch or a
// corrupt file, it returns an empty list plus a warning; the file on
// disk is left untouched either way.
func (c *SummaryCache) Load(source string, loc *time.Location) ([]models.DailySummary, *pipeerr.Warning) {
	data, err := os.ReadFile(c.dataPath(source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		w := pipeerr.NewWarning(pipeerr.KindCacheCorrupt, source, "cache file unreadable", err)
		return nil, &w
	}

	var file models.SourceCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		w := pipeerr.NewWarning(pipeerr.KindCacheCorrupt, source, "cache file is not valid JSON", err)
		return nil, &w
	}

	if file.Version != CurrentVersion {
		w := pipeerr.NewWarning(pipeerr.KindCacheVersionMismatch, source,
			fmt.Sprintf("on-disk version %d != current %d", file.Version, CurrentVersion), nil)
		return nil, &w
	}

	today := models.Today(loc)
	var past []models.DailySummary
	for _, s := range file.Summaries {
		if s.Date.Before(today) {
			past = append(past, s)
		}
	}
	return past, nil
}

// LoadOrCompute loads past summaries, recomputes the summary for every
// date present in newEntries (replacing any existing record for that
// date), merges the two, persists atomically, and returns the final
// ordered list. cost resolves an entry's cost when it has none.
func (c *SummaryCache) LoadOrCompute(
	source string,
	newEntries []models.UsageEntry,
	loc *time.Location,
	cost func(models.UsageEntry) float64,
) ([]models.DailySummary, []pipeerr.Warning, error) {
	unlock, err := c.lock(source)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var warnings []pipeerr.Warning

	past, warn := c.Load(source, loc)
	if warn != nil {
		warnings = append(warnings, *warn)
		logging.LogWarn(warn.Error())
	}

	byDate := make(map[models.Date][]models.UsageEntry)
	for _, e := range newEntries {
		d := e.LocalDate(loc)
		byDate[d] = append(byDate[d], e)
	}

	recomputed := make(map[models.Date]models.DailySummary, len(byDate))
	for d, entries := range byDate {
		recomputed[d] = models.NewDailySummary(d, entries, cost)
	}

	merged := make(map[models.Date]models.DailySummary, len(past)+len(recomputed))
	for _, s := range past {
		merged[s.Date] = s
	}
	for d, s := range recomputed {
		merged[d] = s
	}

	final := make([]models.DailySummary, 0, len(merged))
	for _, s := range merged {
		if verr := s.Validate(); verr != nil {
			w := pipeerr.NewWarning(pipeerr.KindDecodeRecord, source,
				fmt.Sprintf("dropping %s summary before persist", s.Date), verr)
			logging.LogWarn(w.Error())
			warnings = append(warnings, w)
			continue
		}
		final = append(final, s)
	}
	sort.Slice(final, func(i, j int) bool { return final[i].Date.Before(final[j].Date) })

	if err := c.persist(source, final); err != nil {
		return nil, warnings, fmt.Errorf("%w: %v", pipeerr.ErrCacheWrite, err)
	}

	return final, warnings, nil
}

func (c *SummaryCache) persist(source string, summaries []models.DailySummary) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return err
	}

	updatedAt := time.Now()
	if existing, err := os.ReadFile(c.dataPath(source)); err == nil {
		var prior models.SourceCacheFile
		if err := json.Unmarshal(existing, &prior); err == nil &&
			prior.Version == CurrentVersion &&
			reflect.DeepEqual(prior.Summaries, summaries) {
			updatedAt = prior.UpdatedAt
		}
	}

	file := models.SourceCacheFile{
		Version:    CurrentVersion,
		SourceName: source,
		UpdatedAt:  updatedAt,
		Summaries:  summaries,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	dataPath := c.dataPath(source)
	tmp := dataPath + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dataPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// lock acquires the exclusive advisory lock on <source>_daily.lock,
// never on the data file itself, and returns a function that releases
// it. It retries every 25ms until LockTimeout elapses.
func (c *SummaryCache) lock(source string) (func(), error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, err
	}

	path := c.lockPath(source)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, pipeerr.ErrCacheLockTimeout
		}
		time.Sleep(25 * time.Millisecond)
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
