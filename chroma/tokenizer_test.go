package chroma_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/chroma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_TokenizeLines(t *testing.T) {
	t.Parallel()

	t.Run("splits tokens by line and keeps the text", func(t *testing.T) {
		t.Parallel()

		tokenizer := chroma.NewTokenizer(chroma.StyleFromPalette(testPalette()))
		src := "package main\n\nfunc main() {}\n"

		lines := tokenizer.TokenizeLines(codeshell.LangGo, src)

		require.Len(t, lines, 3)
		var got []string
		for _, line := range lines {
			var sb strings.Builder
			for _, tok := range line {
				sb.WriteString(tok.Text)
			}
			got = append(got, sb.String())
		}
		assert.Equal(t, []string{"package main", "", "func main() {}"}, got)
		assert.Equal(t, "package", lines[0][0].Text)
		assert.True(t, lines[0][0].Style.Bold)
	})

	t.Run("multi-line comments keep their style on every line", func(t *testing.T) {
		t.Parallel()

		tokenizer := chroma.NewTokenizer(chroma.StyleFromPalette(testPalette()))

		lines := tokenizer.TokenizeLines(codeshell.LangC, "/* one\ntwo */\n")

		require.Len(t, lines, 2)
		assert.Equal(t, "#888888", lines[1][0].Style.Foreground)
	})

	t.Run("unknown language yields nil", func(t *testing.T) {
		t.Parallel()

		tokenizer := chroma.NewTokenizer(chroma.StyleFromPalette(testPalette()))

		assert.Nil(t, tokenizer.TokenizeLines(codeshell.LangUnknown, "x"))
		assert.Empty(t, tokenizer.TokenizeLines(codeshell.LangGo, ""))
	})
}
