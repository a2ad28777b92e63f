package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func float64Ptr(f float64) *float64 { return &f }

func TestUsageEntryValidate(t *testing.T) {
	valid := UsageEntry{
		Timestamp:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Model:       "claude-3-5-sonnet",
		InputTokens: 100,
	}
	assert.NoError(t, valid.Validate())

	t.Run("zero timestamp", func(t *testing.T) {
		e := valid
		e.Timestamp = time.Time{}
		assert.Error(t, e.Validate())
	})

	t.Run("timestamp far in the future", func(t *testing.T) {
		e := valid
		e.Timestamp = time.Now().Add(48 * time.Hour)
		assert.Error(t, e.Validate())
	})

	t.Run("negative tokens", func(t *testing.T) {
		e := valid
		e.InputTokens = -1
		assert.Error(t, e.Validate())
	})

	t.Run("negative cost", func(t *testing.T) {
		e := valid
		e.CostUSD = float64Ptr(-0.01)
		assert.Error(t, e.Validate())
	})

	t.Run("free-tier zero cost is valid", func(t *testing.T) {
		e := valid
		e.CostUSD = float64Ptr(0)
		assert.NoError(t, e.Validate())
	})
}

func TestDailySummaryValidate(t *testing.T) {
	date := Date{Year: 2026, Month: time.August, Day: 1}

	valid := DailySummary{
		Date:                     date,
		TotalInputTokens:         100,
		TotalOutputTokens:        50,
		TotalCacheReadTokens:     10,
		TotalCacheCreationTokens: 5,
		TotalCostUSD:             1.23,
		Models: map[string]ModelStat{
			"claude-3-5-sonnet": {InputTokens: 100, OutputTokens: 50, CacheReadTokens: 10, CacheCreationTokens: 5, CostUSD: 1.23},
		},
	}
	assert.NoError(t, valid.Validate())

	t.Run("input mismatch", func(t *testing.T) {
		s := valid
		s.TotalInputTokens = 999
		assert.Error(t, s.Validate())
	})

	t.Run("cost mismatch beyond tolerance", func(t *testing.T) {
		s := valid
		s.TotalCostUSD = 5.0
		assert.Error(t, s.Validate())
	})

	t.Run("cost mismatch within tolerance passes", func(t *testing.T) {
		s := valid
		s.TotalCostUSD = 1.23 + 1e-9
		assert.NoError(t, s.Validate())
	})

	t.Run("multi-model sums must add up", func(t *testing.T) {
		s := DailySummary{
			Date:                     date,
			TotalInputTokens:         300,
			TotalOutputTokens:        150,
			TotalCacheReadTokens:     30,
			TotalCacheCreationTokens: 15,
			TotalCostUSD:             3.0,
			Models: map[string]ModelStat{
				"model-a": {InputTokens: 100, OutputTokens: 50, CacheReadTokens: 10, CacheCreationTokens: 5, CostUSD: 1.0},
				"model-b": {InputTokens: 200, OutputTokens: 100, CacheReadTokens: 20, CacheCreationTokens: 10, CostUSD: 2.0},
			},
		}
		assert.NoError(t, s.Validate())
	})
}

func TestModelPricingValidate(t *testing.T) {
	assert.NoError(t, ModelPricing{InputPerMTok: 3, OutputPerMTok: 15}.Validate())

	t.Run("negative rate", func(t *testing.T) {
		p := ModelPricing{InputPerMTok: -1}
		assert.Error(t, p.Validate())
	})

	t.Run("zero rates are valid", func(t *testing.T) {
		assert.NoError(t, ModelPricing{}.Validate())
	})
}
