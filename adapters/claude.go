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

// ClaudeCode decodes ~/.claude/projects/**/*.jsonl: line-delimited JSON
// assistant-turn records, each optionally carrying a pre-computed
// "costUSD" the pricing resolver must trust as-is.
type ClaudeCode struct {
	// override replaces the default data directory when non-empty
	// (config.DataConfig.AdapterPaths["claude-code"]).
	override string
}

func NewClaudeCode(override string) *ClaudeCode { return &ClaudeCode{override: override} }

func (a *ClaudeCode) Name() string { return "claude-code" }

func (a *ClaudeCode) dataDir() (string, error) {
	if a.override != "" {
		return a.override, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

func (a *ClaudeCode) CollectFiles() ([]string, error) {
	root, err := a.dataDir()
	if err != nil {
		return nil, err
	}
	return walkFiles(root, func(path string, d fs.DirEntry) bool {
		return strings.HasSuffix(path, ".jsonl")
	})
}

func (a *ClaudeCode) EnumerateRecent(since time.Time) ([]string, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return nil, err
	}
	return recentFiles(files, since), nil
}

type claudeLine struct {
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"requestId"`
	Message   *claudeMessage `json:"message"`
	CostUSD   *float64       `json:"costUSD"`
}

type claudeMessage struct {
	Model string      `json:"model"`
	ID    string       `json:"id"`
	Usage *claudeUsage `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

func (a *ClaudeCode) DecodeFile(path string) ([]models.UsageEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []models.UsageEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec claudeLine
		if err := sonic.Unmarshal(line, &rec); err != nil {
			continue // malformed record, skip per-record
		}

		if rec.Message == nil || rec.Message.Usage == nil {
			continue
		}
		if rec.Message.Model == "<synthetic>" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			continue // do not substitute "now"
		}

		u := rec.Message.Usage
		entries = append(entries, models.UsageEntry{
			Timestamp:           ts,
			Model:                normalizer.Normalize(rec.Message.Model),
			InputTokens:          u.InputTokens,
			OutputTokens:         u.OutputTokens,
			CacheCreationTokens:  u.CacheCreationInputTokens,
			CacheReadTokens:      u.CacheReadInputTokens,
			CostUSD:              rec.CostUSD,
			MessageID:            rec.Message.ID,
			RequestID:            rec.RequestID,
			Source:               a.Name(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("claude-code: reading %s: %w", path, err)
	}

	return dedupEntries(entries), nil
}
