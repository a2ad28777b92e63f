package models

import (
	"fmt"
	"math"
	"time"
)

// ValidationError reports a single field-level invariant violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const costTolerance = 1e-6

// Validate enforces the §3 UsageEntry invariants: non-negative token
// counts, a parseable (non-zero) timestamp, and a non-negative cost when
// present.
func (e UsageEntry) Validate() error {
	if e.Timestamp.IsZero() {
		return ValidationError{"timestamp", "must be set"}
	}
	if e.Timestamp.After(time.Now().Add(24 * time.Hour)) {
		return ValidationError{"timestamp", "is implausibly far in the future"}
	}
	if e.InputTokens < 0 || e.OutputTokens < 0 || e.CacheReadTokens < 0 || e.CacheCreationTokens < 0 || e.ThinkingTokens < 0 {
		return ValidationError{"tokens", "must be non-negative"}
	}
	if e.CostUSD != nil && *e.CostUSD < 0 {
		return ValidationError{"cost_usd", "must be non-negative"}
	}
	return nil
}

// Validate enforces the §3 DailySummary invariant: per-model sums equal
// the top-level totals, within floating-point tolerance for cost.
func (s DailySummary) Validate() error {
	var input, output, cacheRead, cacheCreation int64
	var cost float64
	for _, m := range s.Models {
		input += m.InputTokens
		output += m.OutputTokens
		cacheRead += m.CacheReadTokens
		cacheCreation += m.CacheCreationTokens
		cost += m.CostUSD
	}
	if input != s.TotalInputTokens {
		return ValidationError{"input_tokens", "per-model sum does not match total"}
	}
	if output != s.TotalOutputTokens {
		return ValidationError{"output_tokens", "per-model sum does not match total"}
	}
	if cacheRead != s.TotalCacheReadTokens {
		return ValidationError{"cache_read_tokens", "per-model sum does not match total"}
	}
	if cacheCreation != s.TotalCacheCreationTokens {
		return ValidationError{"cache_creation_tokens", "per-model sum does not match total"}
	}
	if math.Abs(cost-s.TotalCostUSD) > costTolerance {
		return ValidationError{"cost_usd", "per-model sum does not match total"}
	}
	return nil
}

// Validate checks that unit prices are non-negative.
func (p ModelPricing) Validate() error {
	if p.InputPerMTok < 0 || p.OutputPerMTok < 0 || p.CacheReadPerMTok < 0 || p.CacheCreationPerMTok < 0 {
		return ValidationError{"pricing", "rates must be non-negative"}
	}
	return nil
}
