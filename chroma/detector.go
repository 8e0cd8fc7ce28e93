package chroma

import (
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.LanguageDetector = (*Detector)(nil)

// languages maps chroma lexer names to the languages the analyzers know.
var languages = map[string]codeshell.Language{
	"HTML":       codeshell.LangHTML,
	"XML":        codeshell.LangXML,
	"CSS":        codeshell.LangCSS,
	"SCSS":       codeshell.LangSCSS,
	"C":          codeshell.LangC,
	"C++":        codeshell.LangCPP,
	"Java":       codeshell.LangJava,
	"C#":         codeshell.LangCSharp,
	"JavaScript": codeshell.LangJavaScript,
	"TypeScript": codeshell.LangTypeScript,
	"Go":         codeshell.LangGo,
	"Rust":       codeshell.LangRust,
	"JSON":       codeshell.LangJSON,
}

// extensions covers files chroma has no lexer for.
var extensions = map[string]codeshell.Language{
	".less": codeshell.LangLess,
}

// Detector detects source languages from file paths using chroma.
type Detector struct{}

// NewDetector creates a new chroma-based language detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectFromPath returns the language of path, or LangUnknown when the
// file is not one the analyzers support. Strips the "a/" and "b/" prefixes
// of diff paths.
func (d *Detector) DetectFromPath(p string) codeshell.Language {
	p = strings.TrimPrefix(p, "a/")
	p = strings.TrimPrefix(p, "b/")
	filename := path.Base(p)

	if lang, ok := extensions[strings.ToLower(path.Ext(filename))]; ok {
		return lang
	}
	lexer := lexers.Match(filename)
	if lexer == nil {
		return codeshell.LangUnknown
	}
	return languages[lexer.Config().Name]
}
