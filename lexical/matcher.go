package lexical

import (
	"fmt"
	"strings"
)

// Matcher diagnostic codes.
const (
	CodeUnmatchedBracket    = "unmatched-bracket"
	CodeMismatchedBracket   = "mismatched-bracket"
	CodeUnclosedBracket     = "unclosed-bracket"
	CodeUnterminatedString  = "unterminated-string"
	CodeUnterminatedComment = "unterminated-comment"
)

// maxUnclosedBrackets bounds how many open brackets are reported at EOF.
const maxUnclosedBrackets = 10

// matcherConfig selects the comment and quote syntax of a language.
type matcherConfig struct {
	lineComments  bool // "// ..."
	blockComments bool // "/* ... */"
	singleQuotes  bool
	doubleQuotes  bool
	backticks     bool // may span lines
	rawBackticks  bool // no escapes inside backticks
}

var (
	cConfig    = matcherConfig{lineComments: true, blockComments: true, singleQuotes: true, doubleQuotes: true}
	jsConfig   = matcherConfig{lineComments: true, blockComments: true, singleQuotes: true, doubleQuotes: true, backticks: true}
	goConfig   = matcherConfig{lineComments: true, blockComments: true, singleQuotes: true, doubleQuotes: true, backticks: true, rawBackticks: true}
	rustConfig = matcherConfig{lineComments: true, blockComments: true, doubleQuotes: true} // ' also starts lifetimes
	jsonConfig = matcherConfig{doubleQuotes: true}
	cssConfig  = matcherConfig{blockComments: true, singleQuotes: true, doubleQuotes: true}
	scssConfig = matcherConfig{lineComments: true, blockComments: true, singleQuotes: true, doubleQuotes: true}
)

func (cfg matcherConfig) isQuote(ch byte) bool {
	switch ch {
	case '\'':
		return cfg.singleQuotes
	case '"':
		return cfg.doubleQuotes
	case '`':
		return cfg.backticks
	}
	return false
}

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

type openBracket struct {
	ch     byte
	offset int
}

// matchBrackets runs the bracket, string and comment state machine over
// text and reports every construct left unbalanced.
func matchBrackets(text string, cfg matcherConfig, c *collector) {
	var stack []openBracket

	scanCode(text, cfg, scanHooks{
		code: func(i int) {
			ch := text[i]
			switch ch {
			case '(', '[', '{':
				stack = append(stack, openBracket{ch: ch, offset: i})
			case ')', ']', '}':
				if len(stack) == 0 {
					c.errorf(i, CodeUnmatchedBracket, fmt.Sprintf("unmatched closing '%c'", ch))
					return
				}
				top := stack[len(stack)-1]
				if closerFor[top.ch] == ch {
					stack = stack[:len(stack)-1]
					return
				}
				c.errorf(i, CodeMismatchedBracket,
					fmt.Sprintf("expected '%c' to close '%c', found '%c'", closerFor[top.ch], top.ch, ch))
				// Recover by unwinding to the nearest bracket this closer matches.
				for j := len(stack) - 2; j >= 0; j-- {
					if closerFor[stack[j].ch] == ch {
						stack = stack[:j]
						break
					}
				}
			}
		},
		unterminatedString: func(start int, quote byte) {
			c.errorf(start, CodeUnterminatedString, fmt.Sprintf("unterminated string starting with %c", quote))
		},
		unterminatedComment: func(start int) {
			c.errorf(start, CodeUnterminatedComment, "unterminated block comment")
		},
	})

	from := 0
	if len(stack) > maxUnclosedBrackets {
		from = len(stack) - maxUnclosedBrackets
	}
	for _, b := range stack[from:] {
		c.errorf(b.offset, CodeUnclosedBracket, fmt.Sprintf("unclosed '%c'", b.ch))
	}
}

// scanHooks receives the events of scanCode. Nil hooks are ignored.
type scanHooks struct {
	code                func(i int)                 // byte outside comments and strings
	unterminatedString  func(start int, quote byte) // string cut off by newline or EOF
	unterminatedComment func(start int)             // block comment cut off by EOF
	skip                func(from, to int)          // comment or string body [from, to)
}

type scanState int

const (
	stateNormal scanState = iota
	stateLineComment
	stateBlockComment
	stateString
)

// scanCode walks text once, separating code bytes from comment and string
// bodies. A single- or double-quoted string reaching end of line is
// reported and closed there so it never spills into the next line; a
// backslash directly before the newline continues it.
func scanCode(text string, cfg matcherConfig, h scanHooks) {
	state := stateNormal
	start := 0
	var quote byte

	skip := func(from, to int) {
		if h.skip != nil && to > from {
			h.skip(from, to)
		}
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch state {
		case stateNormal:
			switch {
			case ch == '/' && i+1 < len(text) && text[i+1] == '/' && cfg.lineComments:
				state, start = stateLineComment, i
				i++
			case ch == '/' && i+1 < len(text) && text[i+1] == '*' && cfg.blockComments:
				state, start = stateBlockComment, i
				i++
			case cfg.isQuote(ch):
				state, start, quote = stateString, i, ch
				if h.code != nil {
					h.code(i)
				}
			default:
				if h.code != nil {
					h.code(i)
				}
			}

		case stateLineComment:
			if ch == '\n' {
				skip(start, i)
				state = stateNormal
			}

		case stateBlockComment:
			if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
				i++
				skip(start, i+1)
				state = stateNormal
			}

		case stateString:
			switch {
			case ch == '\\' && !(quote == '`' && cfg.rawBackticks):
				i++ // escaped byte, including an escaped newline
			case ch == quote:
				skip(start+1, i)
				if h.code != nil {
					h.code(i)
				}
				state = stateNormal
			case ch == '\n' && quote != '`':
				if h.unterminatedString != nil {
					h.unterminatedString(start, quote)
				}
				skip(start+1, i)
				state = stateNormal
			}
		}
	}

	switch state {
	case stateLineComment:
		skip(start, len(text))
	case stateBlockComment:
		skip(start, len(text))
		if h.unterminatedComment != nil {
			h.unterminatedComment(start)
		}
	case stateString:
		skip(start+1, len(text))
		if h.unterminatedString != nil {
			h.unterminatedString(start, quote)
		}
	}
}

// blankCode returns text with comment and string bodies replaced by
// spaces. Newlines and byte offsets are preserved.
func blankCode(text string, cfg matcherConfig) string {
	b := []byte(text)
	scanCode(text, cfg, scanHooks{
		skip: func(from, to int) {
			for i := from; i < to && i < len(b); i++ {
				if b[i] != '\n' {
					b[i] = ' '
				}
			}
		},
	})
	return string(b)
}

// splitLines splits text into lines without their terminators, returning
// the byte offset each line starts at.
func splitLines(text string) (lines []string, starts []int) {
	off := 0
	for off <= len(text) {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			if off < len(text) {
				lines = append(lines, text[off:])
				starts = append(starts, off)
			}
			break
		}
		lines = append(lines, text[off:off+i])
		starts = append(starts, off)
		off += i + 1
	}
	return lines, starts
}
