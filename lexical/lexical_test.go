package lexical_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/lexical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codes returns the diagnostic codes in order.
func codes(ds []codeshell.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}

func TestAnalyzer_Analyze(t *testing.T) {
	t.Parallel()

	t.Run("unsupported language is skipped", func(t *testing.T) {
		t.Parallel()

		ds, meta := lexical.New().Analyze("{{{", codeshell.Language("cobol"))

		assert.Empty(t, ds)
		assert.True(t, meta.Skipped)
		assert.False(t, meta.Supported)
	})

	t.Run("buffer above the size ceiling is skipped", func(t *testing.T) {
		t.Parallel()

		a := lexical.New(lexical.WithSizeCeiling(10))
		ds, meta := a.Analyze(strings.Repeat("(", 11), codeshell.LangJavaScript)

		assert.Empty(t, ds)
		assert.True(t, meta.Skipped)
		assert.True(t, meta.Supported)
		assert.Equal(t, 11, meta.Bytes)
	})

	t.Run("buffer at the size ceiling is analyzed", func(t *testing.T) {
		t.Parallel()

		a := lexical.New(lexical.WithSizeCeiling(10))
		ds, meta := a.Analyze(strings.Repeat("(", 10), codeshell.LangJavaScript)

		assert.False(t, meta.Skipped)
		assert.NotEmpty(t, ds)
	})

	t.Run("findings are heuristic", func(t *testing.T) {
		t.Parallel()

		ds, _ := lexical.New().Analyze("(", codeshell.LangGo)

		require.Len(t, ds, 1)
		assert.Equal(t, codeshell.KindHeuristic, ds[0].Kind)
	})

	t.Run("a panicking pass becomes one warning and other passes still run", func(t *testing.T) {
		t.Parallel()

		a := lexical.New(lexical.WithPanickingPass(codeshell.LangC))
		ds, meta := a.Analyze("int x = 1\n", codeshell.LangC)

		assert.False(t, meta.Skipped)
		assert.Equal(t, []string{lexical.CodeAnalyzerFailure, lexical.CodeMissingStatementSemicolon}, codes(ds))
		assert.Equal(t, codeshell.SeverityWarning, ds[0].Severity)
		assert.Equal(t, 1, ds[0].Line)
		assert.Equal(t, 1, ds[0].Col)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		text := "<div><p class=\"x>\n<span></div>\n<!-- open"
		a := lexical.New()
		first, _ := a.Analyze(text, codeshell.LangHTML)
		second, _ := a.Analyze(text, codeshell.LangHTML)

		assert.Equal(t, first, second)
	})

	t.Run("lists supported languages", func(t *testing.T) {
		t.Parallel()

		a := lexical.New()
		langs := a.Languages()

		assert.Contains(t, langs, codeshell.LangHTML)
		assert.Contains(t, langs, codeshell.LangCPP)
		assert.True(t, a.Supported(codeshell.LangJSON))
		assert.False(t, a.Supported(codeshell.LangUnknown))
	})
}
