package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/codeshell/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.out, c.errOut = &out, &out
	if c.in == nil {
		c.in = strings.NewReader("")
	}
	if c.getenv == nil {
		c.getenv = func(string) string { return "" }
	}
	cmd := newRootCmd(c)
	cmd.SetArgs(append([]string{"--color", "off"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_InitThenCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("call(\n"), 0o644))

	out, err := runCLI(t, &cli{dir: dir}, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "codeshell.toml")

	_, err = runCLI(t, &cli{dir: dir}, "init")
	require.Error(t, err)

	out, err = runCLI(t, &cli{dir: dir}, "check", "app.js")
	require.ErrorIs(t, err, ErrProblems)
	assert.Contains(t, out, "app.js:1:5: error[unclosed-bracket]")
}

func TestCLI_ApplyFromClipboard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := &cli{
		dir: dir,
		clipboard: &mock.Clipboard{ReadFn: func() (string, error) {
			return "Add `hello.txt`:\n\n```\nhi\n```\n", nil
		}},
	}

	out, err := runCLI(t, c, "apply", "--clipboard", "--yes")

	require.NoError(t, err)
	assert.Contains(t, out, "create hello.txt")
	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))

	out, err = runCLI(t, &cli{dir: dir}, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "create hello.txt")
}

func TestCLI_ApplyNeedsReview(t *testing.T) {
	t.Parallel()

	c := &cli{dir: t.TempDir(), in: strings.NewReader(`[{"type":"create","path":"x.txt","content":"x"}]`)}

	_, err := runCLI(t, c, "apply")

	assert.ErrorIs(t, err, ErrUnreviewed)
}

func TestCLI_ProposeNeedsKey(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, &cli{dir: t.TempDir()}, "propose", "do it")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestColorMode(t *testing.T) {
	t.Parallel()

	on, err := colorMode("on")
	require.NoError(t, err)
	assert.True(t, *on)
	auto, err := colorMode("auto")
	require.NoError(t, err)
	assert.Nil(t, auto)
	_, err = colorMode("sometimes")
	assert.Error(t, err)
}

func TestCxxFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "g++", cxxFor("gcc"))
	assert.Equal(t, "x86_64-linux-gnu-g++", cxxFor("x86_64-linux-gnu-gcc"))
	assert.Equal(t, "clang++", cxxFor("clang"))
	assert.Equal(t, "cc", cxxFor("cc"))
}
