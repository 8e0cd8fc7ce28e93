package lexical

import (
	"strings"
)

// Style sheet diagnostic codes.
const (
	CodeMissingColon     = "css-missing-colon"
	CodeMissingSemicolon = "css-missing-semicolon"
)

// checkDeclarations flags declaration lines inside rule blocks that lack a
// property separator or a terminating semicolon. The last declaration of
// a block may omit its semicolon.
func checkDeclarations(text string, cfg matcherConfig, c *collector) {
	lines, starts := splitLines(blankCode(text, cfg))
	depth := 0
	continuing := false // the previous declaration has not ended yet

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		inBlock := depth > 0
		depth += strings.Count(raw, "{") - strings.Count(raw, "}")
		if depth < 0 {
			depth = 0
		}
		if !inBlock || line == "" {
			continue
		}
		if skipDeclaration(line, cfg) {
			continuing = false
			continue
		}

		lead := len(raw) - len(strings.TrimLeft(raw, " \t"))
		trail := len(strings.TrimRight(raw, " \t\r"))

		if !strings.Contains(line, ":") {
			if continuing {
				continuing = !endsDeclaration(line)
				continue
			}
			c.warn(starts[i]+lead, CodeMissingColon, "declaration has no ':' separator", "add ':' between property and value")
			continue
		}
		if strings.HasSuffix(line, ":") {
			continuing = true // value continues on the next line
			continue
		}
		if !endsDeclaration(line) && !nextStartsWith(lines, i, "}") && !nextStartsWith(lines, i, "{") {
			c.warn(starts[i]+trail, CodeMissingSemicolon, "declaration is not terminated with ';'", "add ';' at end of line")
		}
		continuing = false
	}
}

func skipDeclaration(line string, cfg matcherConfig) bool {
	switch {
	case strings.HasSuffix(line, "{"), strings.HasPrefix(line, "}"), strings.HasSuffix(line, "}"):
		return true
	case strings.HasPrefix(line, "@"), strings.HasSuffix(line, ","):
		return true
	case cfg.lineComments && strings.HasSuffix(line, ";") && strings.ContainsAny(line[:1], ".#&+%"):
		// mixin calls and placeholder extends in scss and less
		return true
	}
	return false
}

func endsDeclaration(line string) bool {
	return strings.HasSuffix(line, ";") || strings.HasSuffix(line, "{") || strings.HasSuffix(line, "}")
}

// nextStartsWith reports whether the next non-blank line after i begins
// with prefix.
func nextStartsWith(lines []string, i int, prefix string) bool {
	for _, l := range lines[i+1:] {
		if t := strings.TrimSpace(l); t != "" {
			return strings.HasPrefix(t, prefix)
		}
	}
	return false
}
