// Package models defines the canonical data types shared across the
// ingestion pipeline: the decoded UsageEntry, the persisted DailySummary,
// the on-disk SourceCacheFile, and the PricingTable used to cost entries.
package models

import (
	"fmt"
	"time"

	"github.com/toktrack/usagepipe/normalizer"
)

// Date is a calendar day with no time-of-day or timezone component, used
// as the bucketing key for DailySummary. Two Dates are equal iff they
// denote the same civil day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateIn returns the civil date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the civil date of "now" in loc.
func Today(loc *time.Location) Date {
	return DateIn(time.Now(), loc)
}

// Midnight returns the instant of local midnight of this date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date offset by n civil days.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

// Before reports whether d denotes an earlier civil day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Equal reports whether d and o denote the same civil day.
func (d Date) Equal(o Date) bool { return d == o }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	var y, m, day int
	if _, err := fmt.Sscanf(s, "%04d-%02d-%02d", &y, &m, &day); err != nil {
		return fmt.Errorf("models: invalid date %q: %w", s, err)
	}
	d.Year, d.Month, d.Day = y, time.Month(m), day
	return nil
}

// ISOWeekStart returns the Date of the Monday that starts the ISO week
// containing d.
func (d Date) ISOWeekStart() Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	// time.Weekday: Sunday=0 ... Saturday=6. ISO wants Monday=0 ... Sunday=6.
	isoOffset := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -isoOffset)
	y, m, day := start.Date()
	return Date{Year: y, Month: m, Day: day}
}

// MonthStart returns the first day of the month containing d.
func (d Date) MonthStart() Date { return Date{Year: d.Year, Month: d.Month, Day: 1} }

// UsageEntry is the universal intermediate form every SourceAdapter decodes
// vendor-specific session records into.
type UsageEntry struct {
	Timestamp           time.Time `json:"timestamp"`
	Model               string    `json:"model"`
	InputTokens         int64     `json:"input_tokens"`
	OutputTokens        int64     `json:"output_tokens"`
	CacheReadTokens      int64    `json:"cache_read_tokens"`
	CacheCreationTokens  int64    `json:"cache_creation_tokens"`
	ThinkingTokens       int64    `json:"thinking_tokens"`
	// CostUSD is nil when upstream did not record a cost; the resolver must
	// compute it. A non-nil pointer to 0.0 is a legitimate trusted free-tier
	// value and must never be recomputed.
	CostUSD  *float64 `json:"cost_usd,omitempty"`
	Source   string   `json:"source"`
	Provider string   `json:"provider,omitempty"`

	// MessageID/RequestID are vendor-supplied identifiers carried through
	// for presentation-layer drill-down; they play no role in EntryKey.
	MessageID string `json:"message_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// TotalTokens sums every token field, including thinking tokens.
func (e UsageEntry) TotalTokens() int64 {
	return e.InputTokens + e.OutputTokens + e.CacheReadTokens + e.CacheCreationTokens + e.ThinkingTokens
}

// EntryKey is the deduplication key within a single source: a composite of
// timestamp, model, and the four core token fields. Two decoded records
// that agree on all six collapse to one entry.
func (e UsageEntry) EntryKey() string {
	return fmt.Sprintf("%d|%s|%d|%d|%d|%d",
		e.Timestamp.UnixNano(), e.Model, e.InputTokens, e.OutputTokens, e.CacheReadTokens, e.CacheCreationTokens)
}

// LocalDate buckets the entry by civil day in loc.
func (e UsageEntry) LocalDate(loc *time.Location) Date { return DateIn(e.Timestamp, loc) }

// ModelStat is a per-model subtotal carried inside a DailySummary.
type ModelStat struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CostUSD             float64 `json:"cost_usd"`
}

func (m *ModelStat) add(e UsageEntry, cost float64) {
	m.InputTokens += e.InputTokens
	m.OutputTokens += e.OutputTokens
	m.CacheReadTokens += e.CacheReadTokens
	m.CacheCreationTokens += e.CacheCreationTokens
	m.CostUSD += cost
}

// TotalTokens sums the four core token fields (thinking tokens are not
// tracked per-model since no vendor prices them separately).
func (m ModelStat) TotalTokens() int64 {
	return m.InputTokens + m.OutputTokens + m.CacheReadTokens + m.CacheCreationTokens
}

// DailySummary is the immutable aggregate for one (source, local day).
type DailySummary struct {
	Date                    Date                 `json:"date"`
	TotalInputTokens        int64                `json:"total_input_tokens"`
	TotalOutputTokens       int64                `json:"total_output_tokens"`
	TotalCacheReadTokens    int64                `json:"total_cache_read_tokens"`
	TotalCacheCreationTokens int64               `json:"total_cache_creation_tokens"`
	TotalCostUSD            float64              `json:"total_cost_usd"`
	Models                  map[string]ModelStat `json:"models"`
	EntryCount              int                  `json:"entry_count"`
}

// NewDailySummary computes the summary for date from entries already
// filtered to that date. cost resolves an entry's cost when CostUSD is
// nil; it must not be called when CostUSD is already set.
func NewDailySummary(date Date, entries []UsageEntry, cost func(UsageEntry) float64) DailySummary {
	s := DailySummary{Date: date, Models: make(map[string]ModelStat)}
	for _, e := range entries {
		c := 0.0
		if e.CostUSD != nil {
			c = *e.CostUSD
		} else if cost != nil {
			c = cost(e)
		}

		s.TotalInputTokens += e.InputTokens
		s.TotalOutputTokens += e.OutputTokens
		s.TotalCacheReadTokens += e.CacheReadTokens
		s.TotalCacheCreationTokens += e.CacheCreationTokens
		s.TotalCostUSD += c
		s.EntryCount++

		model := e.Model
		if model == "" {
			model = normalizer.Unknown
		}
		ms := s.Models[model]
		ms.add(e, c)
		s.Models[model] = ms
	}
	return s
}

// TotalTokens sums the four core total fields.
func (s DailySummary) TotalTokens() int64 {
	return s.TotalInputTokens + s.TotalOutputTokens + s.TotalCacheReadTokens + s.TotalCacheCreationTokens
}

// SourceCacheFile is the on-disk persisted state for one SourceAdapter.
type SourceCacheFile struct {
	Version    int            `json:"version"`
	SourceName string         `json:"source"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Summaries  []DailySummary `json:"summaries"`
}

// ModelPricing is the per-million-token cost of one model.
type ModelPricing struct {
	InputPerMTok        float64 `json:"input_per_mtok"`
	OutputPerMTok       float64 `json:"output_per_mtok"`
	CacheReadPerMTok    float64 `json:"cache_read_per_mtok"`
	CacheCreationPerMTok float64 `json:"cache_creation_per_mtok"`
}

// PricingTable maps a canonical model id to its unit prices.
type PricingTable struct {
	FetchedAt time.Time               `json:"fetched_at"`
	Models    map[string]ModelPricing `json:"models"`
}
