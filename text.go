package codeshell

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// LineCount returns the number of lines in text. A trailing newline ends
// the last line rather than opening a new one, so "a\nb\n" has two lines
// and the empty string has none.
func LineCount(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// LineOffset returns the byte offset at which the 1-indexed line starts:
// just after the (line-1)th newline. Lines past the end clamp to len(text).
func LineOffset(text string, line int) int {
	if line <= 1 {
		return 0
	}
	off := 0
	for n := 1; n < line; n++ {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}
	return off
}

// LineOf returns the 1-indexed line containing the byte at offset.
func LineOf(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	return strings.Count(text[:offset], "\n") + 1
}

// LineSpan maps a half-open byte span back to the lines it covers.
// The end line is the line of the last byte in the span.
func LineSpan(text string, start, end int) (startLine, endLine int) {
	startLine = LineOf(text, start)
	if end <= start {
		return startLine, startLine
	}
	return startLine, LineOf(text, end-1)
}

// LineIndex converts byte offsets into line/column positions.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Position returns the 1-based line and rune column of offset.
func (x *LineIndex) Position(offset int) (line, col int) {
	if offset > len(x.text) {
		offset = len(x.text)
	}
	if offset < 0 {
		offset = 0
	}
	i := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset }) - 1
	start := x.starts[i]
	return i + 1, utf8.RuneCountInString(x.text[start:offset]) + 1
}
