package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toktrack/usagepipe/models"
)

func TestAggregateSummariesMergesAndFiltersZeroModels(t *testing.T) {
	d := models.Date{Year: 2026, Month: 8, Day: 1}
	result := Result{
		PerSource: map[string][]models.DailySummary{
			"claude-code": {{
				Date:             d,
				TotalInputTokens: 100,
				TotalCostUSD:     1.0,
				Models:           map[string]models.ModelStat{"gpt-4": {InputTokens: 100, CostUSD: 1.0}},
			}},
			"codex": {{
				Date:             d,
				TotalInputTokens: 200,
				TotalCostUSD:     2.0,
				Models:           map[string]models.ModelStat{"gpt-5-codex": {InputTokens: 200, CostUSD: 2.0}, "ghost-model": {}},
			}},
		},
	}

	merged, byModel, bySource := AggregateSummaries(result)
	require.Len(t, merged, 1)
	assert.Equal(t, int64(300), merged[0].TotalInputTokens)
	assert.Equal(t, 3.0, merged[0].TotalCostUSD)

	assert.Contains(t, byModel, "gpt-4")
	assert.Contains(t, byModel, "gpt-5-codex")
	assert.NotContains(t, byModel, "ghost-model") // zero tokens everywhere

	require.Len(t, bySource, 2)
	assert.Equal(t, "codex", bySource[0].Source) // larger total sorts first
}

func TestAggregateSummariesOnEmptyResultIsEmpty(t *testing.T) {
	merged, byModel, bySource := AggregateSummaries(Result{PerSource: map[string][]models.DailySummary{}})
	assert.Empty(t, merged)
	assert.Empty(t, byModel)
	assert.Empty(t, bySource)
}
