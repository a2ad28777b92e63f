package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiDecodeFileSkipsNonGeminiAndMissingTokens(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"sessionId": "sess-abc",
		"model": "gemini-2.5-pro",
		"messages": [
			{"id": "m1", "type": "user", "timestamp": "2026-08-01T10:00:00Z"},
			{"id": "m2", "type": "gemini", "timestamp": "2026-08-01T10:00:05Z", "tokens": {"input": 200, "output": 40, "cached": 10, "thoughts": 5}},
			{"id": "m3", "type": "gemini", "timestamp": "2026-08-01T10:00:10Z", "model": "gemini-2.5-flash", "tokens": {"input": 30, "output": 10, "cached": 0, "thoughts": 0}}
		]
	}`
	path := writeFile(t, dir, "session.json", content)

	a := NewGemini("")
	entries, err := a.DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "gemini-2-5-pro", entries[0].Model) // falls back to session model, dot->hyphen normalized
	assert.Equal(t, int64(200), entries[0].InputTokens)
	assert.Equal(t, int64(5), entries[0].ThinkingTokens)
	assert.Equal(t, "sess-abc", entries[0].RequestID)

	assert.Equal(t, "gemini-2-5-flash", entries[1].Model) // message model wins
}
