package adapters

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClaudeCodeDecodeFileSkipsSyntheticAndMalformed(t *testing.T) {
	dir := t.TempDir()
	content := `{"timestamp":"2026-08-01T10:00:00Z","requestId":"r1","message":{"model":"claude-opus-4-5","id":"m1","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":0,"cache_read_input_tokens":0}},"costUSD":0.01}
{"timestamp":"2026-08-01T10:05:00Z","requestId":"r2","message":{"model":"<synthetic>","id":"m2","usage":{"input_tokens":10,"output_tokens":5}}}
not json at all
{"timestamp":"not-a-timestamp","message":{"model":"claude-opus-4-5","usage":{"input_tokens":1,"output_tokens":1}}}
`
	path := writeFile(t, dir, "session.jsonl", content)

	a := NewClaudeCode("")
	entries, err := a.DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "claude-opus-4-5", entries[0].Model)
	assert.Equal(t, int64(100), entries[0].InputTokens)
	assert.Equal(t, int64(50), entries[0].OutputTokens)
	require.NotNil(t, entries[0].CostUSD)
	assert.Equal(t, 0.01, *entries[0].CostUSD)
	assert.Equal(t, "claude-code", entries[0].Source)
}

func TestClaudeCodeDecodeFileDedupsIdenticalRecords(t *testing.T) {
	dir := t.TempDir()
	line := `{"timestamp":"2026-08-01T10:00:00Z","message":{"model":"claude-sonnet-4-5","id":"m1","usage":{"input_tokens":10,"output_tokens":5}}}`
	path := writeFile(t, dir, "session.jsonl", line+"\n"+line+"\n")

	a := NewClaudeCode("")
	entries, err := a.DecodeFile(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClaudeCodeDecodeFileNormalizesModelBeforeBucketing(t *testing.T) {
	dir := t.TempDir()
	content := `{"timestamp":"2026-08-01T10:00:00Z","message":{"model":"claude-sonnet-4-20250514","id":"m1","usage":{"input_tokens":10,"output_tokens":5}}}
{"timestamp":"2026-08-02T10:00:00Z","message":{"model":"claude-sonnet-4-20250930","id":"m2","usage":{"input_tokens":20,"output_tokens":8}}}
`
	path := writeFile(t, dir, "session.jsonl", content)

	a := NewClaudeCode("")
	entries, err := a.DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Two different dated snapshots of the same model must already carry
	// the same canonical model id leaving DecodeFile, since that id is the
	// cache map key every downstream component builds on.
	assert.Equal(t, "claude-sonnet-4", entries[0].Model)
	assert.Equal(t, "claude-sonnet-4", entries[1].Model)
}

func TestWalkFilesMissingRootIsEmpty(t *testing.T) {
	files, err := walkFiles(filepath.Join(t.TempDir(), "does-not-exist"), func(path string, d fs.DirEntry) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, files)
}
