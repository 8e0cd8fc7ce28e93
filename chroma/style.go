package chroma

import (
	chromalib "github.com/alecthomas/chroma/v2"
	"github.com/fwojciec/codeshell"
)

// StyleFromPalette returns a function mapping chroma token types to token
// styles drawn from p.
func StyleFromPalette(p codeshell.Palette) StyleFunc {
	return func(tt chromalib.TokenType) codeshell.Style {
		switch {
		case tt == chromalib.KeywordType:
			return codeshell.Style{Foreground: p.Type, Bold: true}
		case tt.InCategory(chromalib.Keyword):
			return codeshell.Style{Foreground: p.Keyword, Bold: true}
		case tt.InCategory(chromalib.Comment):
			return codeshell.Style{Foreground: p.Comment}
		case tt.InSubCategory(chromalib.LiteralString):
			return codeshell.Style{Foreground: p.String}
		case tt.InSubCategory(chromalib.LiteralNumber):
			return codeshell.Style{Foreground: p.Number}
		case tt.InCategory(chromalib.Operator):
			return codeshell.Style{Foreground: p.Operator}
		case tt == chromalib.NameFunction, tt == chromalib.NameFunctionMagic, tt == chromalib.NameTag:
			return codeshell.Style{Foreground: p.Function}
		case tt == chromalib.NameAttribute, tt == chromalib.NameClass:
			return codeshell.Style{Foreground: p.Type}
		case tt == chromalib.NameConstant, tt == chromalib.NameBuiltin:
			return codeshell.Style{Foreground: p.Constant}
		case tt.InCategory(chromalib.Punctuation):
			return codeshell.Style{Foreground: p.Punctuation}
		}
		return codeshell.Style{}
	}
}
