package adapters

import (
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

// Gemini decodes ~/.gemini/tmp/**/session-*.json: one file per session holding a
// full messages array, rather than an append-only log. Only entries whose
// type is "gemini" carry token usage; everything else (tool calls, user
// turns) is skipped.
type Gemini struct {
	override string
}

func NewGemini(override string) *Gemini { return &Gemini{override: override} }

func (a *Gemini) Name() string { return "gemini" }

func (a *Gemini) dataDir() (string, error) {
	if a.override != "" {
		return a.override, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gemini", "tmp"), nil
}

func (a *Gemini) CollectFiles() ([]string, error) {
	root, err := a.dataDir()
	if err != nil {
		return nil, err
	}
	return walkFiles(root, func(path string, d fs.DirEntry) bool {
		base := filepath.Base(path)
		return strings.HasPrefix(base, "session-") && strings.HasSuffix(base, ".json")
	})
}

func (a *Gemini) EnumerateRecent(since time.Time) ([]string, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return nil, err
	}
	return recentFiles(files, since), nil
}

type geminiSession struct {
	SessionID string          `json:"sessionId"`
	Model     string          `json:"model"`
	Messages  []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Model     string        `json:"model"`
	Tokens    *geminiTokens `json:"tokens"`
}

type geminiTokens struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Cached   int64 `json:"cached"`
	Thoughts int64 `json:"thoughts"`
}

func (a *Gemini) DecodeFile(path string) ([]models.UsageEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var session geminiSession
	if err := sonic.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("gemini: decoding %s: %w", path, err)
	}

	var entries []models.UsageEntry
	for _, msg := range session.Messages {
		if msg.Type != "gemini" || msg.Tokens == nil {
			continue
		}

		ts, err := time.Parse(time.RFC3339, msg.Timestamp)
		if err != nil {
			continue
		}

		model := msg.Model
		if model == "" {
			model = session.Model
		}

		sessionID := session.SessionID

		entries = append(entries, models.UsageEntry{
			Timestamp:          ts,
			Model:               normalizer.Normalize(model),
			InputTokens:         msg.Tokens.Input,
			OutputTokens:        msg.Tokens.Output,
			CacheReadTokens:     msg.Tokens.Cached,
			ThinkingTokens:      msg.Tokens.Thoughts,
			MessageID:           msg.ID,
			RequestID:           sessionID,
			Source:              a.Name(),
		})
	}

	return dedupEntries(entries), nil
}
