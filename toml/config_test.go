package toml_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, toml.FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("reads settings and fills defaults", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := writeConfig(t, dir, `
root = "src"

[batch]
max_changed_lines = 50
rollback = true
journal = ".codeshell/journal.jsonl"

[diagnostics]
authoritative = ["c"]
`)

		cfg, err := toml.Load(path)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "src"), cfg.Root)
		assert.Equal(t, 50, cfg.Batch.MaxChangedLines)
		assert.True(t, cfg.Batch.Rollback)
		assert.Equal(t, filepath.Join(dir, "src", ".codeshell", "journal.jsonl"), cfg.Batch.Journal)
		assert.Equal(t, codeshell.DefaultUndoDepth, cfg.Batch.UndoDepth)
		assert.Equal(t, codeshell.DefaultSizeCeiling, cfg.Diagnostics.SizeCeiling)
		assert.Equal(t, []codeshell.Language{codeshell.LangC}, cfg.Diagnostics.Authoritative)
		assert.Equal(t, "gcc", cfg.Compiler.Command)
	})

	t.Run("root defaults to the config directory", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		cfg, err := toml.Load(writeConfig(t, dir, ""))

		require.NoError(t, err)
		assert.Equal(t, dir, cfg.Root)
		assert.Equal(t, codeshell.DefaultConfig().Diagnostics.Authoritative, cfg.Diagnostics.Authoritative)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		t.Parallel()

		_, err := toml.Load(writeConfig(t, t.TempDir(), "[batch]\nmax_lines = 3\n"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch.max_lines")
	})

	t.Run("invalid TOML is an error", func(t *testing.T) {
		t.Parallel()

		_, err := toml.Load(writeConfig(t, t.TempDir(), "root = \n"))

		assert.ErrorContains(t, err, "failed to parse TOML")
	})
}

func TestLoadFrom(t *testing.T) {
	t.Parallel()

	t.Run("finds the file in a parent directory", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeConfig(t, dir, "[server]\naddr = \"127.0.0.1:9000\"\norigins = [\"http://localhost:5173\"]\n")
		sub := filepath.Join(dir, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0o755))

		cfg, err := toml.LoadFrom(sub)

		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
		assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.Origins)
		assert.Equal(t, dir, cfg.Root)
	})

	t.Run("defaults without a file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		cfg, err := toml.LoadFrom(dir)

		require.NoError(t, err)
		want := codeshell.DefaultConfig()
		want.Root = dir
		assert.Equal(t, want, cfg)
	})
}

func TestEncode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data, err := toml.Encode(codeshell.DefaultConfig())
	require.NoError(t, err)
	path := filepath.Join(dir, toml.FileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := toml.Load(path)

	require.NoError(t, err)
	want := codeshell.DefaultConfig()
	want.Root = dir
	assert.Equal(t, want, cfg)
}
