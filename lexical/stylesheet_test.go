package lexical_test

import (
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/lexical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylesheet(t *testing.T) {
	t.Parallel()

	css := func(text string) []codeshell.Diagnostic {
		ds, _ := lexical.New().Analyze(text, codeshell.LangCSS)
		return ds
	}

	t.Run("last declaration may omit its semicolon", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, css("a {\n  color: red;\n  margin: 0\n}\n"))
	})

	t.Run("declaration without colon", func(t *testing.T) {
		t.Parallel()

		ds := css("a {\n  color red;\n}\n")

		require.Len(t, ds, 1)
		assert.Equal(t, lexical.CodeMissingColon, ds[0].Code)
		assert.Equal(t, 2, ds[0].Line)
		assert.Equal(t, 3, ds[0].Col)
		assert.Equal(t, codeshell.SeverityWarning, ds[0].Severity)
	})

	t.Run("declaration without semicolon", func(t *testing.T) {
		t.Parallel()

		ds := css("a {\n  color: red\n  margin: 0;\n}\n")

		require.Len(t, ds, 1)
		assert.Equal(t, lexical.CodeMissingSemicolon, ds[0].Code)
		assert.Equal(t, 2, ds[0].Line)
		assert.Equal(t, 13, ds[0].Col)
	})

	t.Run("comments are ignored", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, css("/* a { b } */\nx {\n  /* color red */\n  top: 0;\n}\n"))
	})

	t.Run("double slash is not a comment in css", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, css("a {\n  background: url(//cdn/x.png);\n}\n"))
	})

	t.Run("multi-line values", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, css("a {\n  grid-template-areas:\n    \"a b\"\n    \"c d\";\n}\n"))
	})

	t.Run("top level lines are not declarations", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, css("a,\nb\n{ top: 0; }\n"))
	})

	t.Run("unclosed rule block", func(t *testing.T) {
		t.Parallel()

		ds := css("a {\n  color: red;\n")

		assert.Equal(t, []string{lexical.CodeUnclosedBracket}, codes(ds))
	})

	t.Run("scss nesting, mixins and line comments", func(t *testing.T) {
		t.Parallel()

		text := "// note\n.a {\n  .b {\n    color: red;\n  }\n  @include m;\n  %x;\n  &:hover { top: 0; }\n}\n"
		ds, _ := lexical.New().Analyze(text, codeshell.LangSCSS)

		assert.Empty(t, ds)
	})
}
