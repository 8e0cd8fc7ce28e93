// Package chroma detects source languages and highlights source code using
// the chroma library.
package chroma

import (
	"strings"

	chromalib "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Tokenizer = (*Tokenizer)(nil)

// StyleFunc maps chroma token types to token styles.
type StyleFunc func(chromalib.TokenType) codeshell.Style

// Tokenizer extracts highlighted tokens using chroma.
type Tokenizer struct {
	style StyleFunc
}

// NewTokenizer creates a tokenizer styling tokens with style. Use
// StyleFromPalette to build one from a theme palette.
func NewTokenizer(style StyleFunc) *Tokenizer {
	return &Tokenizer{style: style}
}

// TokenizeLines tokenizes source with full context, then splits the tokens
// by line. It returns nil when chroma has no lexer for lang and an empty
// slice for empty source.
func (t *Tokenizer) TokenizeLines(lang codeshell.Language, source string) [][]codeshell.Token {
	if source == "" {
		return [][]codeshell.Token{}
	}
	if lang == codeshell.LangUnknown {
		return nil
	}
	lexer := lexers.Get(string(lang))
	if lexer == nil {
		return nil
	}
	iterator, err := chromalib.Coalesce(lexer).Tokenise(nil, source)
	if err != nil {
		return nil
	}

	var (
		lines [][]codeshell.Token
		line  []codeshell.Token
	)
	for tok := iterator(); tok != chromalib.EOF; tok = iterator() {
		style := t.style(tok.Type)
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if part != "" {
				line = append(line, codeshell.Token{Text: part, Style: style})
			}
			if i < len(parts)-1 {
				lines = append(lines, line)
				line = nil
			}
		}
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}
