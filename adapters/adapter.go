// Package adapters implements the SourceAdapter abstraction (spec §4.3):
// one implementation per AI coding assistant, each knowing how to locate
// and decode its own vendor-specific session files into UsageEntry values.
package adapters

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/toktrack/usagepipe/models"
	"github.com/toktrack/usagepipe/pipeerr"
)

// Adapter is the capability set every vendor implements (spec §4.3).
type Adapter interface {
	// Name is the stable short identifier, also used as the cache
	// filename prefix.
	Name() string

	// CollectFiles enumerates every session file under this adapter's
	// data directory. Returns pipeerr.ErrHomeDirUnavailable if the user
	// home directory cannot be resolved.
	CollectFiles() ([]string, error)

	// EnumerateRecent returns the subset of CollectFiles() whose mtime is
	// at or after since.
	EnumerateRecent(since time.Time) ([]string, error)

	// DecodeFile parses one file into UsageEntry values, silently
	// skipping malformed records but propagating whole-file I/O errors.
	DecodeFile(path string) ([]models.UsageEntry, error)
}

// Registry returns the closed set of adapters this module ships, in a
// fixed order (spec §9: a closed set of variants, not a plugin system).
// overrides maps an adapter's Name() to a replacement data directory,
// taking the place of its default ~/.<vendor>/... path; a name absent
// from overrides (or a nil map) keeps the default.
func Registry(overrides map[string]string) []Adapter {
	return []Adapter{
		NewClaudeCode(overrides["claude-code"]),
		NewCodex(overrides["codex"]),
		NewGemini(overrides["gemini"]),
		NewOpenCode(overrides["opencode"]),
	}
}

// homeDir resolves the user's home directory, surfacing
// pipeerr.ErrHomeDirUnavailable rather than silently falling back to the
// process working directory (spec §4.3).
func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", pipeerr.ErrHomeDirUnavailable
	}
	return home, nil
}

// walkFiles collects every regular file under root for which match
// returns true. A missing root directory yields an empty, error-free
// result: an adapter whose CLI was never installed contributes nothing.
func walkFiles(root string, match func(path string, info fs.DirEntry) bool) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than failing the whole walk
		}
		if d.IsDir() {
			return nil
		}
		if match(path, d) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// recentFiles filters a file list to those whose mtime is >= since.
func recentFiles(files []string, since time.Time) []string {
	var out []string
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(since) {
			out = append(out, f)
		}
	}
	return out
}

// dedupEntries removes records that collapse to the same EntryKey within a
// single file, keeping the first occurrence (spec §4.3 common behavior).
func dedupEntries(entries []models.UsageEntry) []models.UsageEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.UsageEntry, 0, len(entries))
	for _, e := range entries {
		k := e.EntryKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
