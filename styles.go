package codeshell

// ColorPair is a foreground and background color combination. Colors are
// "#RRGGBB" hex strings; an empty string keeps the terminal default.
type ColorPair struct {
	Foreground string
	Background string
}

// Styles holds the color pairs used to present batches and diagnostics.
type Styles struct {
	Added      ColorPair // added diff lines
	Deleted    ColorPair // removed diff lines
	Context    ColorPair // unchanged diff lines
	HunkHeader ColorPair
	FileHeader ColorPair
	Selected   ColorPair // highlighted entry in a list
	Error      ColorPair
	Warning    ColorPair
	Muted      ColorPair // help text and secondary labels
}

// Palette holds the semantic colors syntax highlighting draws from.
type Palette struct {
	Foreground string
	Background string

	Keyword     string
	String      string
	Number      string
	Comment     string
	Operator    string
	Function    string
	Type        string
	Constant    string
	Punctuation string
}

// Theme provides styles for terminal rendering.
type Theme interface {
	Styles() Styles
	Palette() Palette
}
