package lexical

import (
	"strings"
)

// CodeMissingStatementSemicolon is reported for C-like statements that
// appear to lack a terminating semicolon.
const CodeMissingStatementSemicolon = "c-missing-semicolon"

// headerWords start lines that never end in a semicolon.
var headerWords = map[string]bool{
	"if": true, "for": true, "foreach": true, "while": true, "switch": true,
	"else": true, "do": true, "case": true, "default": true, "try": true,
	"catch": true, "finally": true, "using": true, "lock": true,
	"synchronized": true, "template": true, "namespace": true, "class": true,
	"struct": true, "union": true, "enum": true, "interface": true,
}

const (
	terminators       = "{};:,\\"
	continuationChars = "+-*/%=&|^~!?.<>(["
	leadingOperators  = "{.+-*/%&|^?:=<>)],\""
)

// checkSemicolons flags statement lines that neither end in a terminator
// nor belong to a construct that legitimately continues onto the next
// line. It errs towards silence: anything ambiguous is skipped.
func checkSemicolons(text string, cfg matcherConfig, c *collector) {
	lines, starts := splitLines(blankCode(text, cfg))

	var braces []bool // true for data braces (initializers, enums)
	parens := 0
	macro := false // inside a backslash-continued preprocessor line
	stmt := -1     // line the current statement started on
	var last byte  // last significant byte seen

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if macro || line[0] == '#' {
			macro = strings.HasSuffix(line, "\\")
			stmt = -1
			continue
		}
		if stmt < 0 {
			stmt = i
		}
		enum := hasWord(lines[stmt], "enum") || hasWord(line, "enum")

		for k := 0; k < len(raw); k++ {
			ch := raw[k]
			switch ch {
			case '(', '[':
				parens++
			case ')', ']':
				if parens > 0 {
					parens--
				}
			case '{':
				data := enum || strings.IndexByte("=,([]", last) >= 0 ||
					(len(braces) > 0 && braces[len(braces)-1])
				braces = append(braces, data)
			case '}':
				if len(braces) > 0 {
					braces = braces[:len(braces)-1]
				}
			}
			if ch != ' ' && ch != '\t' && ch != '\r' {
				last = ch
			}
		}

		end := line[len(line)-1]
		switch {
		case strings.IndexByte(terminators, end) >= 0:
			if end != ',' && end != '\\' {
				stmt = -1
			}
			continue
		case strings.IndexByte(continuationChars, end) >= 0,
			parens > 0,
			len(braces) > 0 && braces[len(braces)-1],
			nextStartsWithAny(lines, i, leadingOperators):
			continue
		case isHeader(lines[stmt]) || isHeader(line):
			stmt = -1
			continue
		case returnTypeLine(lines, i):
			stmt = -1
			continue
		case line[0] == '@', line[0] == '[' && end == ']':
			stmt = -1
			continue
		}

		c.warn(starts[i]+len(strings.TrimRight(raw, " \t\r")), CodeMissingStatementSemicolon,
			"statement may be missing ';'", "add ';' at end of line")
		stmt = -1
	}
}

// isHeader reports whether line opens a control-flow or declaration
// header, ignoring a leading closing brace as in "} else".
func isHeader(line string) bool {
	line = strings.TrimLeft(strings.TrimSpace(line), "} \t")
	word := line
	for k := 0; k < len(line); k++ {
		if !isIdentByte(line[k]) {
			word = line[:k]
			break
		}
	}
	return headerWords[word]
}

func hasWord(line, word string) bool {
	for off := 0; ; {
		i := strings.Index(line[off:], word)
		if i < 0 {
			return false
		}
		i += off
		before := i == 0 || !isIdentByte(line[i-1])
		after := i+len(word) == len(line) || !isIdentByte(line[i+len(word)])
		if before && after {
			return true
		}
		off = i + len(word)
	}
}

// returnTypeLine reports whether line i is the return type of a function
// definition written with the name on the following line, as in
// "static int\nfoo(void)\n{".
func returnTypeLine(lines []string, i int) bool {
	if strings.ContainsAny(lines[i], "=(") {
		return false
	}
	j := nextNonBlank(lines, i)
	if j < 0 {
		return false
	}
	sig := strings.TrimLeft(strings.TrimSpace(lines[j]), "*& \t")
	k := 0
	for k < len(sig) && isIdentByte(sig[k]) {
		k++
	}
	if k == 0 || !strings.HasPrefix(strings.TrimLeft(sig[k:], " \t"), "(") {
		return false
	}
	return strings.HasSuffix(sig, "{") || nextStartsWithAny(lines, j, "{")
}

func nextNonBlank(lines []string, i int) int {
	for j := i + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return j
		}
	}
	return -1
}

func nextStartsWithAny(lines []string, i int, chars string) bool {
	for _, l := range lines[i+1:] {
		if t := strings.TrimSpace(l); t != "" {
			return strings.IndexByte(chars, t[0]) >= 0
		}
	}
	return false
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}
