// Package fs implements storage and caching on the local file system.
package fs

import (
	"os"
	"path/filepath"
)

// DefaultCacheDir returns the default cache directory for codeshell.
// Uses XDG_CACHE_HOME if set, otherwise falls back to ~/.cache/codeshell,
// or system temp directory if home is unavailable.
func DefaultCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeshell")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "codeshell")
	}
	return filepath.Join(home, ".cache", "codeshell")
}

// DefaultJournalPath returns where committed batches are journaled for
// the workspace at root.
func DefaultJournalPath(root string) string {
	return filepath.Join(root, ".codeshell", "journal.jsonl")
}
