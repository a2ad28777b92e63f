package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toktrack/usagepipe/models"
)

func noCost(models.UsageEntry) float64 { return 0 }

func TestLoadOrComputeThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	loc := time.UTC

	today := models.Today(loc)
	yesterday := today.AddDays(-1)

	entries := []models.UsageEntry{
		{Timestamp: yesterday.Midnight(loc).Add(time.Hour), Model: "gpt-4", InputTokens: 100, OutputTokens: 50},
	}

	final, warnings, err := c.LoadOrCompute("fake", entries, loc, noCost)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, final, 1)
	assert.True(t, final[0].Date.Equal(yesterday))
	assert.Equal(t, int64(100), final[0].TotalInputTokens)

	past, warn := c.Load("fake", loc)
	assert.Nil(t, warn)
	require.Len(t, past, 1)
	assert.True(t, past[0].Date.Equal(yesterday))
}

func TestLoadOrComputeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	loc := time.UTC
	yesterday := models.Today(loc).AddDays(-1)

	entries := []models.UsageEntry{
		{Timestamp: yesterday.Midnight(loc).Add(time.Hour), Model: "gpt-4", InputTokens: 100, OutputTokens: 50},
	}

	_, _, err := c.LoadOrCompute("fake", entries, loc, noCost)
	require.NoError(t, err)
	first, err := os.ReadFile(c.dataPath("fake"))
	require.NoError(t, err)

	_, _, err = c.LoadOrCompute("fake", entries, loc, noCost)
	require.NoError(t, err)
	second, err := os.ReadFile(c.dataPath("fake"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadPreservesPastOnPastDaysWhenWarmRunTouchesOnlyToday(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	loc := time.UTC
	yesterday := models.Today(loc).AddDays(-1)
	twoDaysAgo := yesterday.AddDays(-1)

	cold := []models.UsageEntry{
		{Timestamp: twoDaysAgo.Midnight(loc).Add(time.Hour), Model: "gpt-4", InputTokens: 10},
		{Timestamp: yesterday.Midnight(loc).Add(time.Hour), Model: "gpt-4", InputTokens: 20},
	}
	_, _, err := c.LoadOrCompute("fake", cold, loc, noCost)
	require.NoError(t, err)

	// A warm run that only decoded today's files contributes no entries
	// for twoDaysAgo; that record must be untouched.
	warmFinal, _, err := c.LoadOrCompute("fake", nil, loc, noCost)
	require.NoError(t, err)

	var got *models.DailySummary
	for i := range warmFinal {
		if warmFinal[i].Date.Equal(twoDaysAgo) {
			got = &warmFinal[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, int64(10), got.TotalInputTokens)
}

func TestHasFreshFalseWhenVersionMismatched(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	require.NoError(t, os.MkdirAll(c.root, 0o755))
	stale := models.SourceCacheFile{Version: CurrentVersion - 1, SourceName: "fake"}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(c.root, "fake_daily.json"), data, 0o644))

	assert.False(t, c.HasFresh("fake"))

	past, warn := c.Load("fake", time.UTC)
	assert.Nil(t, past)
	require.NotNil(t, warn)
	assert.Equal(t, "cache_version_mismatch", string(warn.Kind))

	// File on disk must be preserved, not deleted.
	_, err = os.Stat(filepath.Join(c.root, "fake_daily.json"))
	assert.NoError(t, err)
}

func TestHasFreshFalseWhenFileMissing(t *testing.T) {
	c := New(t.TempDir())
	assert.False(t, c.HasFresh("fake"))
}
