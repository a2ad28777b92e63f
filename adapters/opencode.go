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

// OpenCode decodes ~/.local/share/opencode/storage/message/**/msg_*.json: one
// file per message in a content-addressed storage tree, rather than a
// log file or session document. The logical timestamp is the message's
// own time.created field, never the file's mtime, since files can be
// rewritten or migrated long after the message happened.
type OpenCode struct {
	override string
}

func NewOpenCode(override string) *OpenCode { return &OpenCode{override: override} }

func (a *OpenCode) Name() string { return "opencode" }

func (a *OpenCode) dataDir() (string, error) {
	if a.override != "" {
		return a.override, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "opencode", "storage", "message"), nil
}

func (a *OpenCode) CollectFiles() ([]string, error) {
	root, err := a.dataDir()
	if err != nil {
		return nil, err
	}
	return walkFiles(root, func(path string, d fs.DirEntry) bool {
		base := filepath.Base(path)
		return strings.HasPrefix(base, "msg_") && strings.HasSuffix(base, ".json")
	})
}

// EnumerateRecent still filters by file mtime: it is a cheap proxy for
// "was this message file touched since the last warm run", even though
// the logical timestamp recorded on the entry comes from the message
// body itself.
func (a *OpenCode) EnumerateRecent(since time.Time) ([]string, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return nil, err
	}
	return recentFiles(files, since), nil
}

type openCodeMessage struct {
	ID         string           `json:"id"`
	SessionID  string           `json:"sessionID"`
	ModelID    string           `json:"modelID"`
	ProviderID string           `json:"providerID"`
	Time       openCodeTime     `json:"time"`
	Tokens     *openCodeTokens  `json:"tokens"`
	Cost       *float64         `json:"cost"`
}

type openCodeTime struct {
	Created int64 `json:"created"`
}

type openCodeTokens struct {
	Input     int64              `json:"input"`
	Output    int64              `json:"output"`
	Reasoning int64              `json:"reasoning"`
	Cache     openCodeCacheSplit `json:"cache"`
}

type openCodeCacheSplit struct {
	Read  int64 `json:"read"`
	Write int64 `json:"write"`
}

func (a *OpenCode) DecodeFile(path string) ([]models.UsageEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var msg openCodeMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("opencode: decoding %s: %w", path, err)
	}

	// A message without token usage (a pure tool/user turn) contributes
	// nothing; that is not an error.
	if msg.Tokens == nil {
		return nil, nil
	}
	if msg.Time.Created == 0 {
		return nil, nil
	}

	ts := time.UnixMilli(msg.Time.Created).UTC()

	entry := models.UsageEntry{
		Timestamp:           ts,
		Model:                normalizer.Normalize(msg.ModelID),
		Provider:             msg.ProviderID,
		InputTokens:          msg.Tokens.Input,
		OutputTokens:         msg.Tokens.Output,
		ThinkingTokens:       msg.Tokens.Reasoning,
		CacheReadTokens:      msg.Tokens.Cache.Read,
		CacheCreationTokens:  msg.Tokens.Cache.Write,
		CostUSD:              msg.Cost,
		MessageID:            msg.ID,
		RequestID:            msg.SessionID,
		Source:               a.Name(),
	}

	return []models.UsageEntry{entry}, nil
}
