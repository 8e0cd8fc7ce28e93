// Package lexical implements heuristic structural analyzers for source
// buffers. Each analyzer is a single linear scan over the whole text; none
// of them parse a grammar, so every finding is a KindHeuristic diagnostic.
package lexical

import (
	"fmt"
	"sort"

	"github.com/fwojciec/codeshell"
)

// Ensure Analyzer implements codeshell.Analyzer.
var _ codeshell.Analyzer = (*Analyzer)(nil)

// CodeAnalyzerFailure is reported when an analyzer pass panics.
const CodeAnalyzerFailure = "analyzer-failure"

// pass is one analyzer run over a buffer.
type pass struct {
	name string
	run  func(text string, c *collector)
}

// Analyzer dispatches a buffer to the passes configured for its language.
type Analyzer struct {
	sizeCeiling int
	profiles    map[codeshell.Language][]pass
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSizeCeiling sets the largest buffer, in bytes, that is analyzed.
func WithSizeCeiling(n int) Option {
	return func(a *Analyzer) {
		a.sizeCeiling = n
	}
}

// withPass appends an extra pass for lang. Used by tests to inject faults.
func withPass(lang codeshell.Language, name string, run func(string, *collector)) Option {
	return func(a *Analyzer) {
		a.profiles[lang] = append(a.profiles[lang], pass{name: name, run: run})
	}
}

// New creates an Analyzer with the default language profiles.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		sizeCeiling: codeshell.DefaultSizeCeiling,
		profiles:    defaultProfiles(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultProfiles() map[codeshell.Language][]pass {
	matcher := func(cfg matcherConfig) pass {
		return pass{name: "matcher", run: func(text string, c *collector) { matchBrackets(text, cfg, c) }}
	}
	markup := func(caseSensitive bool) pass {
		return pass{name: "markup", run: func(text string, c *collector) { analyzeMarkup(text, caseSensitive, c) }}
	}
	sheet := func(cfg matcherConfig) []pass {
		return []pass{
			matcher(cfg),
			{name: "stylesheet", run: func(text string, c *collector) { checkDeclarations(text, cfg, c) }},
		}
	}
	clike := func(cfg matcherConfig) []pass {
		return []pass{
			matcher(cfg),
			{name: "semicolon", run: func(text string, c *collector) { checkSemicolons(text, cfg, c) }},
		}
	}

	return map[codeshell.Language][]pass{
		codeshell.LangHTML: {markup(false)},
		codeshell.LangXML:  {markup(true)},

		codeshell.LangCSS:  sheet(cssConfig),
		codeshell.LangSCSS: sheet(scssConfig),
		codeshell.LangLess: sheet(scssConfig),

		codeshell.LangC:      clike(cConfig),
		codeshell.LangCPP:    clike(cConfig),
		codeshell.LangJava:   clike(cConfig),
		codeshell.LangCSharp: clike(cConfig),

		codeshell.LangJavaScript: {matcher(jsConfig)},
		codeshell.LangTypeScript: {matcher(jsConfig)},
		codeshell.LangGo:         {matcher(goConfig)},
		codeshell.LangRust:       {matcher(rustConfig)},
		codeshell.LangJSON:       {matcher(jsonConfig)},
	}
}

// Supported reports whether an analyzer profile exists for lang.
func (a *Analyzer) Supported(lang codeshell.Language) bool {
	_, ok := a.profiles[lang]
	return ok
}

// Languages returns the supported languages in sorted order.
func (a *Analyzer) Languages() []codeshell.Language {
	langs := make([]codeshell.Language, 0, len(a.profiles))
	for l := range a.profiles {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Analyze scans text with every pass of the language profile and returns
// the de-duplicated, sorted findings. Unsupported languages and buffers
// above the size ceiling are skipped.
func (a *Analyzer) Analyze(text string, lang codeshell.Language) ([]codeshell.Diagnostic, codeshell.AnalysisMeta) {
	passes, ok := a.profiles[lang]
	meta := codeshell.AnalysisMeta{
		Language:  lang,
		Supported: ok,
		Bytes:     len(text),
	}
	if !ok || (a.sizeCeiling > 0 && len(text) > a.sizeCeiling) {
		meta.Skipped = true
		return nil, meta
	}

	c := newCollector(text)
	for _, p := range passes {
		runPass(p, text, c)
	}
	return c.diagnostics(), meta
}

// runPass runs p, converting a panic into a single synthetic warning so
// the remaining passes still contribute.
func runPass(p pass, text string, c *collector) {
	defer func() {
		if r := recover(); r != nil {
			c.addAt(1, 1, codeshell.SeverityWarning, CodeAnalyzerFailure,
				fmt.Sprintf("%s analyzer failed: %v", p.name, r), "")
		}
	}()
	p.run(text, c)
}
