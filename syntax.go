package codeshell

// Token is a run of source text sharing one style.
type Token struct {
	Text  string
	Style Style
}

// Style is the visual styling of a token.
type Style struct {
	Foreground string // hex color or empty for the default
	Bold       bool
}

// Tokenizer splits source code into highlighted tokens.
type Tokenizer interface {
	// TokenizeLines tokenizes source as a whole and splits the tokens by
	// line, so constructs spanning lines keep their style. It returns nil
	// when lang cannot be highlighted.
	TokenizeLines(lang Language, source string) [][]Token
}
