package lexical

import "github.com/fwojciec/codeshell"

// WithPanickingPass appends a pass for lang that always panics.
func WithPanickingPass(lang codeshell.Language) Option {
	return withPass(lang, "broken", func(string, *collector) {
		panic("boom")
	})
}
