// Package aggregate implements the Aggregator component (spec §4.6):
// stateless reductions over already-computed DailySummary values. None
// of these operations touch raw UsageEntry data.
package aggregate

import (
	"sort"

	"github.com/toktrack/usagepipe/models"
)

// Total is the single-record reduction produced by TotalFromDaily.
type Total struct {
	TotalInputTokens         int64
	TotalOutputTokens        int64
	TotalCacheReadTokens     int64
	TotalCacheCreationTokens int64
	TotalCostUSD             float64
	ActiveDays               int
}

// TotalTokens sums all four core token fields, matching
// DailySummary.TotalTokens's own definition of "total tokens".
func (t Total) TotalTokens() int64 {
	return t.TotalInputTokens + t.TotalOutputTokens + t.TotalCacheReadTokens + t.TotalCacheCreationTokens
}

// TotalFromDaily sums every field across summaries and counts active days
// (days with at least one entry).
func TotalFromDaily(summaries []models.DailySummary) Total {
	var t Total
	for _, s := range summaries {
		t.TotalInputTokens += s.TotalInputTokens
		t.TotalOutputTokens += s.TotalOutputTokens
		t.TotalCacheReadTokens += s.TotalCacheReadTokens
		t.TotalCacheCreationTokens += s.TotalCacheCreationTokens
		t.TotalCostUSD += s.TotalCostUSD
		if s.EntryCount > 0 {
			t.ActiveDays++
		}
	}
	return t
}

// ByModelFromDaily unions every summary's per-model subtotals, filtering
// out any model whose summed tokens are zero (presentation-layer
// cleanliness; the raw counted totals above are unaffected).
func ByModelFromDaily(summaries []models.DailySummary) map[string]models.ModelStat {
	out := make(map[string]models.ModelStat)
	for _, s := range summaries {
		for model, stat := range s.Models {
			agg := out[model]
			agg.InputTokens += stat.InputTokens
			agg.OutputTokens += stat.OutputTokens
			agg.CacheReadTokens += stat.CacheReadTokens
			agg.CacheCreationTokens += stat.CacheCreationTokens
			agg.CostUSD += stat.CostUSD
			out[model] = agg
		}
	}
	for model, stat := range out {
		if stat.TotalTokens() == 0 {
			delete(out, model)
		}
	}
	return out
}

// MergeByDate sums per-date records across sources into a single ordered
// list; each date's models map is unioned across sources too.
func MergeByDate(perSource map[string][]models.DailySummary) []models.DailySummary {
	merged := make(map[models.Date]models.DailySummary)

	for _, summaries := range perSource {
		for _, s := range summaries {
			acc, ok := merged[s.Date]
			if !ok {
				acc = models.DailySummary{Date: s.Date, Models: make(map[string]models.ModelStat)}
			}
			acc.TotalInputTokens += s.TotalInputTokens
			acc.TotalOutputTokens += s.TotalOutputTokens
			acc.TotalCacheReadTokens += s.TotalCacheReadTokens
			acc.TotalCacheCreationTokens += s.TotalCacheCreationTokens
			acc.TotalCostUSD += s.TotalCostUSD
			acc.EntryCount += s.EntryCount

			for model, stat := range s.Models {
				ms := acc.Models[model]
				ms.InputTokens += stat.InputTokens
				ms.OutputTokens += stat.OutputTokens
				ms.CacheReadTokens += stat.CacheReadTokens
				ms.CacheCreationTokens += stat.CacheCreationTokens
				ms.CostUSD += stat.CostUSD
				acc.Models[model] = ms
			}

			merged[s.Date] = acc
		}
	}

	out := make([]models.DailySummary, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Period selects the rollup bucket size for RollUp.
type Period int

const (
	PeriodWeek Period = iota
	PeriodMonth
)

// RollUp re-buckets daily summaries by ISO (Monday-start) week or by
// calendar month.
func RollUp(daily []models.DailySummary, period Period) []models.DailySummary {
	buckets := make(map[models.Date]models.DailySummary)

	for _, s := range daily {
		var key models.Date
		switch period {
		case PeriodWeek:
			key = s.Date.ISOWeekStart()
		case PeriodMonth:
			key = s.Date.MonthStart()
		}

		acc, ok := buckets[key]
		if !ok {
			acc = models.DailySummary{Date: key, Models: make(map[string]models.ModelStat)}
		}
		acc.TotalInputTokens += s.TotalInputTokens
		acc.TotalOutputTokens += s.TotalOutputTokens
		acc.TotalCacheReadTokens += s.TotalCacheReadTokens
		acc.TotalCacheCreationTokens += s.TotalCacheCreationTokens
		acc.TotalCostUSD += s.TotalCostUSD
		acc.EntryCount += s.EntryCount

		for model, stat := range s.Models {
			ms := acc.Models[model]
			ms.InputTokens += stat.InputTokens
			ms.OutputTokens += stat.OutputTokens
			ms.CacheReadTokens += stat.CacheReadTokens
			ms.CacheCreationTokens += stat.CacheCreationTokens
			ms.CostUSD += stat.CostUSD
			acc.Models[model] = ms
		}

		buckets[key] = acc
	}

	out := make([]models.DailySummary, 0, len(buckets))
	for _, s := range buckets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Stats is the 6-scalar summary over a daily series.
type Stats struct {
	TotalTokens       int64
	AvgTokensPerDay   float64
	PeakDay           models.Date
	PeakDayTokens     int64
	TotalCostUSD      float64
	AvgCostPerDay     float64
	ActiveDays        int
}

// ComputeStats reduces daily to its 6 scalars. Ties for the peak day keep
// whichever date is encountered first in the (already date-ordered) slice.
func ComputeStats(daily []models.DailySummary) Stats {
	var s Stats
	for _, d := range daily {
		if d.EntryCount == 0 {
			continue
		}
		tokens := d.TotalTokens()
		s.TotalTokens += tokens
		s.TotalCostUSD += d.TotalCostUSD
		s.ActiveDays++
		if tokens > s.PeakDayTokens {
			s.PeakDayTokens = tokens
			s.PeakDay = d.Date
		}
	}
	if s.ActiveDays > 0 {
		s.AvgTokensPerDay = float64(s.TotalTokens) / float64(s.ActiveDays)
		s.AvgCostPerDay = s.TotalCostUSD / float64(s.ActiveDays)
	}
	return s
}

// BySource returns each source's unchanged summaries alongside its own
// total, sorted by total tokens descending so the largest contributor is
// always first.
type SourceTotal struct {
	Source    string
	Summaries []models.DailySummary
	Total     Total
}

func BySource(perSource map[string][]models.DailySummary) []SourceTotal {
	out := make([]SourceTotal, 0, len(perSource))
	for source, summaries := range perSource {
		out = append(out, SourceTotal{
			Source:    source,
			Summaries: summaries,
			Total:     TotalFromDaily(summaries),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Total.TotalTokens() > out[j].Total.TotalTokens()
	})
	return out
}

// SpikeLevel names the alert tier for one day's cost against the
// series' arithmetic mean cost.
type SpikeLevel int

const (
	SpikeNone SpikeLevel = iota
	SpikeWarning
	SpikeCritical
)

// SpikeLevelFor classifies a single day's cost against dailyMeanCost using
// the 1.5x/2.0x thresholds. Only meaningful in daily view; callers must
// not call this against weekly/monthly rollups (which always report
// SpikeNone per spec).
func SpikeLevelFor(dayCost float64, dailyMeanCost float64) SpikeLevel {
	if dailyMeanCost <= 0 {
		return SpikeNone
	}
	ratio := dayCost / dailyMeanCost
	switch {
	case ratio >= 2.0:
		return SpikeCritical
	case ratio >= 1.5:
		return SpikeWarning
	default:
		return SpikeNone
	}
}
