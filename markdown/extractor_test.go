package markdown_test

import (
	"errors"
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/markdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("hint paragraph names the file", func(t *testing.T) {
		t.Parallel()

		reply := "Here is the fix.\n\nUpdate `src/main.go`:\n\n```go\npackage main\n```\n"

		ops, err := markdown.NewExtractor().Extract(reply)

		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, codeshell.OpWrite, ops[0].Type)
		assert.Equal(t, "src/main.go", ops[0].Path)
		assert.Equal(t, "package main\n", ops[0].Content)
	})

	t.Run("info string names the file", func(t *testing.T) {
		t.Parallel()

		reply := "```css styles/site.css\nbody {}\n```\n\n```js:app.js\nrun();\n```\n"

		ops, err := markdown.NewExtractor().Extract(reply)

		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, "styles/site.css", ops[0].Path)
		assert.Equal(t, "app.js", ops[1].Path)
		assert.Equal(t, "run();\n", ops[1].Content)
	})

	t.Run("blocks without a path are ignored", func(t *testing.T) {
		t.Parallel()

		reply := "Run this:\n\n```sh\nmake test\n```\n"

		ops, err := markdown.NewExtractor().Extract(reply)

		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("diff blocks become patches per file", func(t *testing.T) {
		t.Parallel()

		diff := "--- a/a.txt\n+++ b/a.txt\n@@ -1 +1 @@\n-a\n+A\n--- a/b.txt\n+++ b/b.txt\n@@ -1 +1 @@\n-b\n+B\n"
		reply := "```diff\n" + diff + "```\n"

		ops, err := markdown.NewExtractor().Extract(reply)

		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, codeshell.Operation{Type: codeshell.OpPatch, Path: "a.txt", Diff: diff}, ops[0])
		assert.Equal(t, "b.txt", ops[1].Path)
	})

	t.Run("diff target errors propagate", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		e := markdown.NewExtractor(markdown.WithDiffTargets(func(string) ([]string, error) { return nil, boom }))

		_, err := e.Extract("```patch\nnonsense\n```\n")

		assert.ErrorIs(t, err, boom)
	})
}
