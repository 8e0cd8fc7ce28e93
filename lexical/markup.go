package lexical

import (
	"fmt"
	"strings"
)

// Markup diagnostic codes.
const (
	CodeUnterminatedMarkupComment = "html-unterminated-comment"
	CodeMismatchClose             = "html-mismatch-close"
	CodeUnexpectedClose           = "html-unexpected-close"
	CodeUnbalancedQuotes          = "html-unbalanced-quotes"
	CodeUnclosedTag               = "html-unclosed-tag"
)

// maxUnclosedTags bounds how many dangling elements are reported.
const maxUnclosedTags = 8

// rawTextElements hold text that is never parsed as markup.
var rawTextElements = []string{"script", "style", "textarea", "title"}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// optionalEndElements may legally be left open in HTML; they are never
// reported as unclosed.
var optionalEndElements = map[string]bool{
	"li": true, "p": true, "dt": true, "dd": true, "option": true,
	"optgroup": true, "tr": true, "td": true, "th": true, "thead": true,
	"tbody": true, "tfoot": true, "colgroup": true, "rp": true, "rt": true,
}

type openTag struct {
	name   string
	offset int
}

type markupScanner struct {
	src           string // raw-text bodies blanked
	caseSensitive bool
	c             *collector
	stack         []openTag
	unclosed      []openTag
}

// analyzeMarkup matches opening and closing tags of an HTML or XML buffer.
// XML is case sensitive and has no void or optional-end elements.
func analyzeMarkup(text string, caseSensitive bool, c *collector) {
	s := &markupScanner{
		src:           blankRawText(text, caseSensitive),
		caseSensitive: caseSensitive,
		c:             c,
	}
	s.scan()

	for i := len(s.stack) - 1; i >= 0; i-- {
		s.markUnclosed(s.stack[i])
	}
	for i, t := range s.unclosed {
		if i == maxUnclosedTags {
			break
		}
		c.warn(t.offset, CodeUnclosedTag, fmt.Sprintf("<%s> is never closed", t.name), fmt.Sprintf("add </%s>", t.name))
	}
}

func (s *markupScanner) scan() {
	src := s.src
	for i := 0; i < len(src); {
		lt := strings.IndexByte(src[i:], '<')
		if lt < 0 {
			return
		}
		i += lt
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest[4:], "-->")
			if end < 0 {
				s.c.errorf(i, CodeUnterminatedMarkupComment, "comment is never terminated with -->")
				return
			}
			i += 4 + end + 3
		case strings.HasPrefix(rest, "<![CDATA["):
			end := strings.Index(rest, "]]>")
			if end < 0 {
				return
			}
			i += end + 3
		case strings.HasPrefix(rest, "<!"), strings.HasPrefix(rest, "<?"):
			i = s.skipTo(i, '>')
		case strings.HasPrefix(rest, "</"):
			i = s.closeTag(i)
		case len(rest) > 1 && isNameStart(rest[1]):
			i = s.openTag(i)
		default:
			i++
		}
	}
}

func (s *markupScanner) skipTo(i int, ch byte) int {
	j := strings.IndexByte(s.src[i:], ch)
	if j < 0 {
		return len(s.src)
	}
	return i + j + 1
}

func (s *markupScanner) name(i int) (string, int) {
	j := i
	for j < len(s.src) && isNameChar(s.src[j]) {
		j++
	}
	name := s.src[i:j]
	if !s.caseSensitive {
		name = strings.ToLower(name)
	}
	return name, j
}

// openTag handles "<name ...>" starting at i and returns the offset after it.
func (s *markupScanner) openTag(i int) int {
	name, j := s.name(i + 1)
	end, balanced := tagEnd(s.src, j)
	if !balanced {
		s.c.warn(i, CodeUnbalancedQuotes, fmt.Sprintf("unbalanced quotes in <%s> attributes", name), "")
	}
	closed := end < len(s.src) && s.src[end] == '>'
	selfClosing := closed && end > j && s.src[end-1] == '/'
	if !selfClosing && !s.isVoid(name) {
		s.stack = append(s.stack, openTag{name: name, offset: i})
	}
	if closed {
		return end + 1
	}
	return end
}

// closeTag handles "</name>" starting at i and returns the offset after it.
func (s *markupScanner) closeTag(i int) int {
	name, _ := s.name(i + 2)
	next := s.skipTo(i, '>')
	if name == "" {
		return next
	}

	match := -1
	for k := len(s.stack) - 1; k >= 0; k-- {
		if s.stack[k].name == name {
			match = k
			break
		}
	}
	if match < 0 {
		if !s.isVoid(name) {
			s.c.errorf(i, CodeUnexpectedClose, fmt.Sprintf("</%s> has no matching open tag", name))
		}
		return next
	}

	skipped := s.stack[match+1:]
	reported := false
	for k := len(skipped) - 1; k >= 0; k-- {
		t := skipped[k]
		if s.isOptionalEnd(t.name) {
			continue
		}
		if !reported {
			s.c.errorf(i, CodeMismatchClose, fmt.Sprintf("</%s> does not match open <%s>", name, t.name))
			reported = true
		}
		s.markUnclosed(t)
	}
	s.stack = s.stack[:match]
	return next
}

func (s *markupScanner) markUnclosed(t openTag) {
	if s.isOptionalEnd(t.name) {
		return
	}
	s.unclosed = append(s.unclosed, t)
}

func (s *markupScanner) isVoid(name string) bool {
	return !s.caseSensitive && voidElements[name]
}

func (s *markupScanner) isOptionalEnd(name string) bool {
	return !s.caseSensitive && optionalEndElements[name]
}

// tagEnd finds the end of a tag whose attributes start at i: the offset
// of its '>', or of a '<' or EOF when the '>' is missing. Quoted attribute
// values may contain '>'. An attribute region that reaches a '<' or EOF
// while inside quotes is unbalanced; the tag then ends at the first '>'
// after i.
func tagEnd(src string, i int) (end int, balanced bool) {
	var quote byte
	for j := i; j < len(src); j++ {
		ch := src[j]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else if ch == '<' {
				return firstGT(src, i), false
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '>' || ch == '<':
			return j, true
		}
	}
	if quote != 0 {
		return firstGT(src, i), false
	}
	return len(src), true
}

func firstGT(src string, i int) int {
	j := strings.IndexByte(src[i:], '>')
	if j < 0 {
		return len(src)
	}
	return i + j
}

// blankRawText replaces the bodies of raw-text elements with spaces,
// preserving newlines, so embedded code never reaches the tag matcher.
func blankRawText(text string, caseSensitive bool) string {
	if caseSensitive {
		return text
	}
	lower := asciiLower(text)
	var b []byte
	for i := 0; i < len(lower); {
		lt := strings.IndexByte(lower[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		name := rawTextAt(lower, i)
		if name == "" {
			i++
			continue
		}
		bodyStart, _ := tagEnd(lower, i+1+len(name))
		if bodyStart < len(lower) && lower[bodyStart] == '>' {
			bodyStart++
		}
		closing := strings.Index(lower[bodyStart:], "</"+name)
		bodyEnd := len(lower)
		if closing >= 0 {
			bodyEnd = bodyStart + closing
		}
		if b == nil {
			b = []byte(text)
		}
		for k := bodyStart; k < bodyEnd; k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
		i = bodyEnd
		if closing < 0 {
			break
		}
		i += 2 + len(name)
	}
	if b == nil {
		return text
	}
	return string(b)
}

// rawTextAt returns the raw-text element name opened at i, if any.
func rawTextAt(lower string, i int) string {
	for _, name := range rawTextElements {
		rest := lower[i+1:]
		if strings.HasPrefix(rest, name) && (len(rest) == len(name) || !isNameChar(rest[len(name)])) {
			return name
		}
	}
	return ""
}

// asciiLower lowercases ASCII letters only, keeping byte offsets intact.
func asciiLower(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + 'a' - 'A'
		}
	}
	return string(b)
}

func isNameStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == ':'
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || ch >= '0' && ch <= '9' || ch == '-' || ch == '.'
}
