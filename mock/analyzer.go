package mock

import (
	"context"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var (
	_ codeshell.Analyzer         = (*Analyzer)(nil)
	_ codeshell.LanguageDetector = (*LanguageDetector)(nil)
	_ codeshell.Checker          = (*Checker)(nil)
)

// Analyzer is a mock implementation of codeshell.Analyzer.
type Analyzer struct {
	AnalyzeFn func(text string, lang codeshell.Language) ([]codeshell.Diagnostic, codeshell.AnalysisMeta)
}

func (a *Analyzer) Analyze(text string, lang codeshell.Language) ([]codeshell.Diagnostic, codeshell.AnalysisMeta) {
	return a.AnalyzeFn(text, lang)
}

// LanguageDetector is a mock implementation of codeshell.LanguageDetector.
type LanguageDetector struct {
	DetectFromPathFn func(path string) codeshell.Language
}

func (d *LanguageDetector) DetectFromPath(path string) codeshell.Language {
	return d.DetectFromPathFn(path)
}

// Checker is a mock implementation of codeshell.Checker.
type Checker struct {
	CheckFn    func(ctx context.Context, path string) ([]codeshell.Diagnostic, error)
	ProducerFn func() string
}

func (c *Checker) Check(ctx context.Context, path string) ([]codeshell.Diagnostic, error) {
	return c.CheckFn(ctx, path)
}

func (c *Checker) Producer() string {
	return c.ProducerFn()
}
