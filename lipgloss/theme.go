// Package lipgloss provides terminal themes and the Lipgloss styles built
// from them.
package lipgloss

import (
	lg "github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Theme = (*Theme)(nil)

// Theme implements codeshell.Theme with Lipgloss-compatible colors.
type Theme struct {
	styles  codeshell.Styles
	palette codeshell.Palette
}

// Styles returns the color styles for this theme.
func (t *Theme) Styles() codeshell.Styles {
	return t.styles
}

// Palette returns the syntax palette for this theme.
func (t *Theme) Palette() codeshell.Palette {
	return t.palette
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	return DarkTheme()
}

// DetectTheme picks the dark or light theme for the background r renders to.
func DetectTheme(r *lg.Renderer) *Theme {
	if r != nil && !r.HasDarkBackground() {
		return LightTheme()
	}
	return DarkTheme()
}

// DarkTheme returns a theme for dark terminal backgrounds (Catppuccin Mocha).
func DarkTheme() *Theme {
	return &Theme{
		styles: codeshell.Styles{
			Added:      codeshell.ColorPair{Foreground: "#a6e3a1", Background: "#004000"},
			Deleted:    codeshell.ColorPair{Foreground: "#f38ba8", Background: "#3f0001"},
			Context:    codeshell.ColorPair{Foreground: "#6c7086"},
			HunkHeader: codeshell.ColorPair{Foreground: "#89b4fa"},
			FileHeader: codeshell.ColorPair{Foreground: "#f9e2af", Background: "#313244"},
			Selected:   codeshell.ColorPair{Foreground: "#1e1e2e", Background: "#89b4fa"},
			Error:      codeshell.ColorPair{Foreground: "#f38ba8"},
			Warning:    codeshell.ColorPair{Foreground: "#f9e2af"},
			Muted:      codeshell.ColorPair{Foreground: "#a6adc8"},
		},
		palette: codeshell.Palette{
			Background:  "#1e1e2e",
			Foreground:  "#cdd6f4",
			Keyword:     "#cba6f7",
			String:      "#a6e3a1",
			Number:      "#fab387",
			Comment:     "#6c7086",
			Operator:    "#89dceb",
			Function:    "#89b4fa",
			Type:        "#f9e2af",
			Constant:    "#fab387",
			Punctuation: "#9399b2",
		},
	}
}

// LightTheme returns a theme for light terminal backgrounds (Catppuccin Latte).
func LightTheme() *Theme {
	return &Theme{
		styles: codeshell.Styles{
			Added:      codeshell.ColorPair{Foreground: "#40a02b", Background: "#d4f4d4"},
			Deleted:    codeshell.ColorPair{Foreground: "#d20f39", Background: "#f4d4d4"},
			Context:    codeshell.ColorPair{Foreground: "#9ca0b0"},
			HunkHeader: codeshell.ColorPair{Foreground: "#1e66f5"},
			FileHeader: codeshell.ColorPair{Foreground: "#df8e1d", Background: "#e6e9ef"},
			Selected:   codeshell.ColorPair{Foreground: "#ffffff", Background: "#1e66f5"},
			Error:      codeshell.ColorPair{Foreground: "#d20f39"},
			Warning:    codeshell.ColorPair{Foreground: "#df8e1d"},
			Muted:      codeshell.ColorPair{Foreground: "#6c6f85"},
		},
		palette: codeshell.Palette{
			Background:  "#eff1f5",
			Foreground:  "#4c4f69",
			Keyword:     "#8839ef",
			String:      "#40a02b",
			Number:      "#fe640b",
			Comment:     "#9ca0b0",
			Operator:    "#04a5e5",
			Function:    "#1e66f5",
			Type:        "#df8e1d",
			Constant:    "#fe640b",
			Punctuation: "#6c6f85",
		},
	}
}

// Style builds a Lipgloss style from cp. A nil renderer uses the default.
func Style(cp codeshell.ColorPair, r *lg.Renderer) lg.Style {
	var s lg.Style
	if r != nil {
		s = r.NewStyle()
	} else {
		s = lg.NewStyle()
	}
	if cp.Foreground != "" {
		s = s.Foreground(lg.Color(cp.Foreground))
	}
	if cp.Background != "" {
		s = s.Background(lg.Color(cp.Background))
	}
	return s
}

// TokenStyle builds a Lipgloss style for a highlighted token.
func TokenStyle(st codeshell.Style, r *lg.Renderer) lg.Style {
	s := Style(codeshell.ColorPair{Foreground: st.Foreground}, r)
	if st.Bold {
		s = s.Bold(true)
	}
	return s
}
