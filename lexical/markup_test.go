package lexical_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/lexical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkup(t *testing.T) {
	t.Parallel()

	html := func(text string) []codeshell.Diagnostic {
		ds, _ := lexical.New().Analyze(text, codeshell.LangHTML)
		return ds
	}

	t.Run("well formed document has no findings", func(t *testing.T) {
		t.Parallel()

		doc := "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>a < b</title></head>\n" +
			"<body class='main'><br><img src=\"x.png\"/><!-- note --></body>\n</html>\n"
		assert.Empty(t, html(doc))
	})

	t.Run("mismatched close reports once and the dangling tag once", func(t *testing.T) {
		t.Parallel()

		ds := html("<div><span></div>")

		require.Len(t, ds, 2)
		assert.Equal(t, lexical.CodeUnclosedTag, ds[0].Code)
		assert.Equal(t, 1, ds[0].Line)
		assert.Equal(t, 6, ds[0].Col)
		assert.Equal(t, codeshell.SeverityWarning, ds[0].Severity)

		assert.Equal(t, lexical.CodeMismatchClose, ds[1].Code)
		assert.Equal(t, 1, ds[1].Line)
		assert.Equal(t, 12, ds[1].Col)
		assert.Equal(t, codeshell.SeverityError, ds[1].Severity)
	})

	t.Run("closing tag with no open ancestor", func(t *testing.T) {
		t.Parallel()

		ds := html("<p>text</span>")

		assert.Equal(t, []string{lexical.CodeUnexpectedClose}, codes(ds))
	})

	t.Run("unterminated comment", func(t *testing.T) {
		t.Parallel()

		ds := html("<div></div>\n<!-- never closed <b>")

		require.Len(t, ds, 1)
		assert.Equal(t, lexical.CodeUnterminatedMarkupComment, ds[0].Code)
		assert.Equal(t, 2, ds[0].Line)
	})

	t.Run("odd quotes in attributes", func(t *testing.T) {
		t.Parallel()

		ds := html("<a href=\"x>link</a>")

		assert.Equal(t, []string{lexical.CodeUnbalancedQuotes}, codes(ds))
	})

	t.Run("quoted attribute values may contain angle brackets", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, html("<a title=\"a > b\" data-x='it\"s'>x</a>"))
	})

	t.Run("raw text bodies are ignored and keep positions", func(t *testing.T) {
		t.Parallel()

		ds := html("<script>\nif (a</b) { x = '<div>' }\n</script>\n<span>")

		require.Len(t, ds, 1)
		assert.Equal(t, lexical.CodeUnclosedTag, ds[0].Code)
		assert.Equal(t, 4, ds[0].Line)
	})

	t.Run("html tag names are case insensitive", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, html("<DIV><Span></span></div>"))
	})

	t.Run("optional end tags are not reported", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, html("<ul><li>one<li>two</ul>"))
	})

	t.Run("reports at most eight unclosed tags", func(t *testing.T) {
		t.Parallel()

		ds := html(strings.Repeat("<div>", 10))

		assert.Len(t, ds, 8)
	})

	t.Run("xml is case sensitive", func(t *testing.T) {
		t.Parallel()

		ds, _ := lexical.New().Analyze("<a><B></b></a>", codeshell.LangXML)

		assert.Equal(t, []string{lexical.CodeUnclosedTag, lexical.CodeUnexpectedClose, lexical.CodeMismatchClose}, codes(ds))
	})

	t.Run("xml self closing and declarations", func(t *testing.T) {
		t.Parallel()

		ds, _ := lexical.New().Analyze("<?xml version=\"1.0\"?>\n<root><item/><![CDATA[<x>]]></root>", codeshell.LangXML)

		assert.Empty(t, ds)
	})
}
