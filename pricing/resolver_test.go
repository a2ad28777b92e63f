package pricing

import (
	"testing"

	"github.com/toktrack/usagepipe/models"
)

func TestCostOfTrustsNoSubtraction(t *testing.T) {
	table := models.PricingTable{Models: map[string]models.ModelPricing{
		"gpt-4": {InputPerMTok: 30, OutputPerMTok: 60},
	}}
	e := models.UsageEntry{
		Model:           "gpt-4",
		InputTokens:     1000,
		OutputTokens:    500,
		CacheReadTokens: 200,
	}

	got := CostOf(e, table)
	want := 1000*30.0/1e6 + 500*60.0/1e6 // no cache_read subtraction from input
	if got != want {
		t.Errorf("CostOf() = %v, want %v", got, want)
	}
}

func TestCostOfUnknownModelIsZero(t *testing.T) {
	table := models.PricingTable{Models: map[string]models.ModelPricing{}}
	e := models.UsageEntry{Model: "totally-unknown-model", InputTokens: 1000}
	if got := CostOf(e, table); got != 0 {
		t.Errorf("CostOf() = %v, want 0", got)
	}
}

func TestCostOfPrefixFallback(t *testing.T) {
	table := models.PricingTable{Models: map[string]models.ModelPricing{
		"claude-opus-4": {InputPerMTok: 15, OutputPerMTok: 75},
	}}
	// Canonical model carries a trailing variant the table key doesn't have,
	// but the table key is a prefix of it.
	e := models.UsageEntry{Model: "claude-opus-4-5", InputTokens: 1_000_000}
	if got := CostOf(e, table); got != 15 {
		t.Errorf("CostOf() = %v, want 15", got)
	}
}

func TestApplyPricingTrustsExistingCost(t *testing.T) {
	zero := 0.0
	entries := []models.UsageEntry{{Model: "gpt-4", InputTokens: 1000, CostUSD: &zero}}
	table := models.PricingTable{Models: map[string]models.ModelPricing{
		"gpt-4": {InputPerMTok: 1000},
	}}

	out := ApplyPricing(entries, table)
	if *out[0].CostUSD != 0 {
		t.Errorf("trusted zero cost was recomputed: got %v", *out[0].CostUSD)
	}
}

func TestApplyPricingForcesFreeProviderToZero(t *testing.T) {
	nonZero := 42.0
	entries := []models.UsageEntry{{Model: "gpt-4", Provider: "github-copilot", CostUSD: &nonZero}}
	table := models.PricingTable{Models: map[string]models.ModelPricing{}}

	out := ApplyPricing(entries, table)
	if *out[0].CostUSD != 0 {
		t.Errorf("copilot entry cost = %v, want 0 (forced free)", *out[0].CostUSD)
	}
}

func TestApplyPricingComputesWhenMissing(t *testing.T) {
	entries := []models.UsageEntry{{Model: "gpt-4", InputTokens: 1000, OutputTokens: 500}}
	table := models.PricingTable{Models: map[string]models.ModelPricing{
		"gpt-4": {InputPerMTok: 30, OutputPerMTok: 60},
	}}

	out := ApplyPricing(entries, table)
	want := 1000*30.0/1e6 + 500*60.0/1e6
	if *out[0].CostUSD != want {
		t.Errorf("computed cost = %v, want %v", *out[0].CostUSD, want)
	}
}

func TestIsFreeProvider(t *testing.T) {
	cases := map[string]bool{
		"github-copilot":            true,
		"github-copilot-enterprise": true,
		"anthropic":                 false,
		"":                          false,
	}
	for provider, want := range cases {
		if got := IsFreeProvider(provider); got != want {
			t.Errorf("IsFreeProvider(%q) = %v, want %v", provider, got, want)
		}
	}
}
