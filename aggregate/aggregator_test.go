package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toktrack/usagepipe/models"
)

func TestTotalFromDailySumsAndCountsActiveDays(t *testing.T) {
	summaries := []models.DailySummary{
		{Date: models.Date{Year: 2026, Month: 8, Day: 1}, TotalInputTokens: 100, TotalCostUSD: 1.0, EntryCount: 2},
		{Date: models.Date{Year: 2026, Month: 8, Day: 2}, TotalInputTokens: 200, TotalCostUSD: 2.0, EntryCount: 0},
	}

	total := TotalFromDaily(summaries)
	assert.Equal(t, int64(300), total.TotalInputTokens)
	assert.Equal(t, 3.0, total.TotalCostUSD)
	assert.Equal(t, 1, total.ActiveDays) // second day has no entries
}

func TestByModelFromDailyFiltersZeroTokenModels(t *testing.T) {
	summaries := []models.DailySummary{
		{
			Date: models.Date{Year: 2026, Month: 8, Day: 1},
			Models: map[string]models.ModelStat{
				"gpt-4":        {InputTokens: 100, OutputTokens: 50},
				"ghost-model":  {}, // zero tokens everywhere
			},
		},
	}

	byModel := ByModelFromDaily(summaries)
	_, hasGPT4 := byModel["gpt-4"]
	_, hasGhost := byModel["ghost-model"]
	assert.True(t, hasGPT4)
	assert.False(t, hasGhost)
}

func TestMergeByDateSumsAcrossSources(t *testing.T) {
	d := models.Date{Year: 2026, Month: 8, Day: 1}
	perSource := map[string][]models.DailySummary{
		"a": {{Date: d, TotalInputTokens: 100, TotalCostUSD: 1.0, Models: map[string]models.ModelStat{}}},
		"b": {{Date: d, TotalInputTokens: 200, TotalCostUSD: 2.0, Models: map[string]models.ModelStat{}}},
	}

	merged := MergeByDate(perSource)
	assert.Len(t, merged, 1)
	assert.Equal(t, int64(300), merged[0].TotalInputTokens)
	assert.Equal(t, 3.0, merged[0].TotalCostUSD)
}

func TestBySourceReportsSeparatelyAndSortsByTokensDescending(t *testing.T) {
	d := models.Date{Year: 2026, Month: 8, Day: 1}
	perSource := map[string][]models.DailySummary{
		"small": {{Date: d, TotalInputTokens: 10, Models: map[string]models.ModelStat{}}},
		"big":   {{Date: d, TotalInputTokens: 1000, Models: map[string]models.ModelStat{}}},
	}

	bySource := BySource(perSource)
	assert.Equal(t, "big", bySource[0].Source)
	assert.Equal(t, "small", bySource[1].Source)
}

func TestRollUpWeekUsesISOMondayStart(t *testing.T) {
	// 2026-08-05 is a Wednesday; its ISO week starts Monday 2026-08-03.
	daily := []models.DailySummary{
		{Date: models.Date{Year: 2026, Month: 8, Day: 5}, TotalInputTokens: 10, Models: map[string]models.ModelStat{}},
		{Date: models.Date{Year: 2026, Month: 8, Day: 6}, TotalInputTokens: 20, Models: map[string]models.ModelStat{}},
	}

	weekly := RollUp(daily, PeriodWeek)
	assert.Len(t, weekly, 1)
	assert.Equal(t, models.Date{Year: 2026, Month: 8, Day: 3}, weekly[0].Date)
	assert.Equal(t, int64(30), weekly[0].TotalInputTokens)
}

func TestComputeStatsPeakDayTiesKeepFirst(t *testing.T) {
	daily := []models.DailySummary{
		{Date: models.Date{Year: 2026, Month: 8, Day: 1}, TotalInputTokens: 100, EntryCount: 1},
		{Date: models.Date{Year: 2026, Month: 8, Day: 2}, TotalInputTokens: 100, EntryCount: 1}, // tie
	}

	stats := ComputeStats(daily)
	assert.Equal(t, models.Date{Year: 2026, Month: 8, Day: 1}, stats.PeakDay)
	assert.Equal(t, int64(100), stats.PeakDayTokens)
	assert.Equal(t, 2, stats.ActiveDays)
}

func TestSpikeLevelForThresholds(t *testing.T) {
	assert.Equal(t, SpikeNone, SpikeLevelFor(10.0, 10.0))
	assert.Equal(t, SpikeWarning, SpikeLevelFor(15.0, 10.0))
	assert.Equal(t, SpikeCritical, SpikeLevelFor(20.0, 10.0))
	assert.Equal(t, SpikeNone, SpikeLevelFor(10.0, 0))
}
