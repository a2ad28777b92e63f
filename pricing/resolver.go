// Package pricing implements the PricingResolver component (spec §4.2):
// fetching and caching the published per-model pricing table, and costing
// individual entries against it.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/toktrack/usagepipe/logging"
	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/normalizer"
)

// LiteLLMPricingURL is the upstream published pricing table, the same
// source the teacher's litellm_provider.go fetches from.
const LiteLLMPricingURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// TTL is how long a fetched pricing table is considered fresh (spec §6.2).
const TTL = time.Hour

// FetchTimeout bounds the single blocking HTTPS call a cold run may make
// (spec §5).
const FetchTimeout = 5 * time.Second

// FreeProviders is the whitelist of providers whose cost is forced to 0
// regardless of any upstream-recorded value (spec §4.2 policy exception).
var FreeProviders = map[string]bool{
	"github-copilot":            true,
	"github-copilot-enterprise": true,
}

// IsFreeProvider reports whether provider is on the free-provider whitelist.
func IsFreeProvider(provider string) bool {
	return FreeProviders[provider]
}

// Resolver fetches, caches, and looks up pricing.
type Resolver struct {
	mu        sync.RWMutex
	cachePath string
	client    *http.Client
	ttl       time.Duration
}

// NewResolver creates a resolver persisting its cache at
// <userDataRoot>/pricing.json (spec §6.3). ttlOverride replaces the
// default TTL when positive; zero keeps the default.
func NewResolver(userDataRoot string, ttlOverride time.Duration) *Resolver {
	ttl := TTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	return &Resolver{
		cachePath: filepath.Join(userDataRoot, "pricing.json"),
		client:    &http.Client{Timeout: FetchTimeout},
		ttl:       ttl,
	}
}

// Load returns a fresh pricing table: the cached one if still within TTL,
// otherwise a freshly fetched one. On fetch failure it falls back to the
// stale cache; if no cache exists at all it returns an empty table.
func (r *Resolver) Load(ctx context.Context) (models.PricingTable, error) {
	cached, cacheErr := r.loadCacheFile()
	if cacheErr == nil && time.Since(cached.FetchedAt) < r.ttl {
		return cached, nil
	}

	fetched, err := r.fetchRemote(ctx)
	if err != nil {
		if cacheErr == nil {
			return cached, nil
		}
		return models.PricingTable{Models: map[string]models.ModelPricing{}}, nil
	}

	_ = r.saveCacheFile(fetched)
	return fetched, nil
}

// LoadCacheOnly never contacts the network (used by the warm path).
func (r *Resolver) LoadCacheOnly() models.PricingTable {
	cached, err := r.loadCacheFile()
	if err != nil {
		return models.PricingTable{Models: map[string]models.ModelPricing{}}
	}
	return cached
}

// Refresh forces a network fetch regardless of TTL.
func (r *Resolver) Refresh(ctx context.Context) (models.PricingTable, error) {
	fetched, err := r.fetchRemote(ctx)
	if err != nil {
		return models.PricingTable{}, err
	}
	_ = r.saveCacheFile(fetched)
	return fetched, nil
}

func (r *Resolver) loadCacheFile() (models.PricingTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return models.PricingTable{}, err
	}
	var table models.PricingTable
	if err := json.Unmarshal(data, &table); err != nil {
		return models.PricingTable{}, err
	}
	return table, nil
}

func (r *Resolver) saveCacheFile(table models.PricingTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.cachePath)
}

// liteLLMEntry mirrors one value of the upstream JSON map; any missing
// field defaults to 0 per spec §6.2.
type liteLLMEntry struct {
	InputCostPerToken           *float64 `json:"input_cost_per_token"`
	OutputCostPerToken          *float64 `json:"output_cost_per_token"`
	CacheReadInputTokenCost     *float64 `json:"cache_read_input_token_cost"`
	CacheCreationInputTokenCost *float64 `json:"cache_creation_input_token_cost"`
}

func (r *Resolver) fetchRemote(ctx context.Context) (models.PricingTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, LiteLLMPricingURL, nil)
	if err != nil {
		return models.PricingTable{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return models.PricingTable{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.PricingTable{}, fmt.Errorf("pricing: upstream returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.PricingTable{}, err
	}

	var raw map[string]liteLLMEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.PricingTable{}, err
	}

	table := models.PricingTable{FetchedAt: time.Now(), Models: make(map[string]models.ModelPricing, len(raw))}
	for model, e := range raw {
		pricing := models.ModelPricing{
			InputPerMTok:         deref(e.InputCostPerToken) * 1_000_000,
			OutputPerMTok:        deref(e.OutputCostPerToken) * 1_000_000,
			CacheReadPerMTok:     deref(e.CacheReadInputTokenCost) * 1_000_000,
			CacheCreationPerMTok: deref(e.CacheCreationInputTokenCost) * 1_000_000,
		}
		if err := pricing.Validate(); err != nil {
			logging.LogWarnf("pricing: dropping %s: %s", model, err)
			continue
		}
		table.Models[normalizer.Normalize(model)] = pricing
	}
	return table, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// CostOf computes an entry's cost from table. The normalized model is
// looked up directly, then through a small set of vendor-prefix
// variations, then via prefix match against table keys, then via
// substring containment in both directions; an unmatched model costs 0.
//
// Per spec §4.2/§9: input_tokens is treated as already exclusive of
// cache_read_tokens; there is no subtraction here.
func CostOf(e models.UsageEntry, table models.PricingTable) float64 {
	canonical := normalizer.Normalize(e.Model)
	p, ok := lookup(canonical, table)
	if !ok {
		return 0
	}

	return float64(e.InputTokens)*p.InputPerMTok/1_000_000 +
		float64(e.OutputTokens)*p.OutputPerMTok/1_000_000 +
		float64(e.CacheReadTokens)*p.CacheReadPerMTok/1_000_000 +
		float64(e.CacheCreationTokens)*p.CacheCreationPerMTok/1_000_000
}

func lookup(canonical string, table models.PricingTable) (models.ModelPricing, bool) {
	if p, ok := table.Models[canonical]; ok {
		return p, true
	}

	for _, variation := range variations(canonical) {
		if p, ok := table.Models[variation]; ok {
			return p, true
		}
	}

	for key, p := range table.Models {
		if strings.HasPrefix(canonical, key) || strings.HasPrefix(key, canonical) {
			return p, true
		}
	}

	for key, p := range table.Models {
		if strings.Contains(canonical, key) || strings.Contains(key, canonical) {
			return p, true
		}
	}

	return models.ModelPricing{}, false
}

func variations(canonical string) []string {
	return []string{
		"anthropic/" + canonical,
		"claude-3-5-" + canonical,
		"claude-3-" + canonical,
		"claude-" + canonical,
	}
}

// ApplyPricing fills CostUSD for every entry whose upstream cost is
// missing, and forces cost to 0 for any entry from a free-listed provider
// regardless of what upstream (or this same call) would otherwise compute.
// Entries that already carry a trusted cost (including Some(0.0)) and are
// not free-provider are left untouched.
func ApplyPricing(entries []models.UsageEntry, table models.PricingTable) []models.UsageEntry {
	out := make([]models.UsageEntry, len(entries))
	for i, e := range entries {
		switch {
		case IsFreeProvider(e.Provider):
			zero := 0.0
			e.CostUSD = &zero
		case e.CostUSD == nil:
			c := CostOf(e, table)
			e.CostUSD = &c
		}
		out[i] = e
	}
	return out
}
