package adapters

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/normalizer"
)

// Codex decodes ~/.codex/sessions/**/*.jsonl: an append-only event log
// where token counts are cumulative. The per-session total is the *last*
// cumulative record, not the sum of all records; this adapter emits one
// synthesized entry per token_count event using the delta since the
// previous count, preferring the event's own last_token_usage delta when
// present.
type Codex struct {
	override string
}

func NewCodex(override string) *Codex { return &Codex{override: override} }

func (a *Codex) Name() string { return "codex" }

func (a *Codex) dataDir() (string, error) {
	if a.override != "" {
		return a.override, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

func (a *Codex) CollectFiles() ([]string, error) {
	root, err := a.dataDir()
	if err != nil {
		return nil, err
	}
	return walkFiles(root, func(path string, d fs.DirEntry) bool {
		return strings.HasSuffix(path, ".jsonl")
	})
}

func (a *Codex) EnumerateRecent(since time.Time) ([]string, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return nil, err
	}
	return recentFiles(files, since), nil
}

type codexLine struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Payload   *codexPayload `json:"payload"`
}

type codexPayload struct {
	Type  string         `json:"type"`
	Model string         `json:"model"`
	Info  *codexInfo     `json:"info"`
	ID    string         `json:"id"`
}

type codexInfo struct {
	TotalTokenUsage *codexTokenUsage `json:"total_token_usage"`
	LastTokenUsage  *codexTokenUsage `json:"last_token_usage"`
}

type codexTokenUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
}

func (a *Codex) DecodeFile(path string) ([]models.UsageEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []models.UsageEntry
	var currentModel, sessionID string
	prevTotals := codexTokenUsage{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec codexLine
		if err := sonic.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Payload == nil {
			continue
		}

		switch rec.Type {
		case "turn_context":
			if rec.Payload.Model != "" {
				currentModel = rec.Payload.Model
			}
			continue
		case "session_meta":
			if rec.Payload.ID != "" {
				sessionID = rec.Payload.ID
			}
			continue
		case "event_msg":
		default:
			continue
		}

		if rec.Payload.Type != "token_count" || rec.Payload.Info == nil || rec.Payload.Info.TotalTokenUsage == nil {
			continue
		}

		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			continue
		}

		total := *rec.Payload.Info.TotalTokenUsage

		var deltaInput, deltaOutput, deltaCached int64
		if last := rec.Payload.Info.LastTokenUsage; last != nil {
			deltaInput, deltaOutput, deltaCached = last.InputTokens, last.OutputTokens, last.CachedInputTokens
		} else {
			deltaInput = satSub(total.InputTokens, prevTotals.InputTokens)
			deltaOutput = satSub(total.OutputTokens, prevTotals.OutputTokens)
			deltaCached = satSub(total.CachedInputTokens, prevTotals.CachedInputTokens)
		}
		prevTotals = total

		if deltaInput == 0 && deltaOutput == 0 && deltaCached == 0 {
			continue
		}

		// Codex's own split is cache-inclusive; normalize input to the
		// Claude-style convention the shared pricing formula assumes.
		nonCachedInput := satSub(deltaInput, deltaCached)

		entries = append(entries, models.UsageEntry{
			Timestamp:       ts,
			Model:           normalizer.Normalize(currentModel),
			InputTokens:     nonCachedInput,
			OutputTokens:    deltaOutput,
			CacheReadTokens: deltaCached,
			MessageID:       sessionID,
			Source:          a.Name(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("codex: reading %s: %w", path, err)
	}

	return entries, nil
}

func satSub(a, b int64) int64 {
	d := a - b
	if d < 0 {
		return 0
	}
	return d
}
