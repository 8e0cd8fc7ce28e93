package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/codeshell"
	lgtheme "github.com/fwojciec/codeshell/lipgloss"
)

const tabWidth = 8

// renderConfig holds the rendering parameters shared by the views.
type renderConfig struct {
	styles    codeshell.Styles
	renderer  *lipgloss.Renderer
	width     int
	detector  codeshell.LanguageDetector // optional
	tokenizer codeshell.Tokenizer        // optional
}

func (cfg renderConfig) style(cp codeshell.ColorPair) lipgloss.Style {
	return lgtheme.Style(cp, cfg.renderer)
}

// renderHeader renders the one-line batch summary.
func renderHeader(b *codeshell.Batch, cfg renderConfig) string {
	id := b.ID
	if len(id) > 8 {
		id = id[:8]
	}
	text := fmt.Sprintf(" batch %s · %d actions", id, len(b.Actions))
	if n := len(b.Failures); n > 0 {
		text += fmt.Sprintf(" · %d rejected operations", n)
	}
	return cfg.style(cfg.styles.FileHeader).Width(cfg.width).Render(text)
}

// renderList renders the action summaries with the selected one
// highlighted, followed by the operations that failed planning.
func renderList(b *codeshell.Batch, cursor int, cfg renderConfig) string {
	var sb strings.Builder
	selected := cfg.style(cfg.styles.Selected)
	for i, a := range b.Actions {
		line := fmt.Sprintf(" %2d. %s", i+1, a.Summary)
		if i == cursor {
			line = selected.Width(cfg.width).Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	failed := cfg.style(cfg.styles.Error)
	for _, f := range b.Failures {
		line := fmt.Sprintf("  ✗  op %d %s %s: %s", f.Index+1, f.Op.Type, f.Op.Path, codeshell.ErrorMessage(f.Err))
		sb.WriteString(failed.Render(line))
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// renderAction renders the unified diff of a, highlighting the source of
// added, removed and context lines.
func renderAction(a codeshell.StagedAction, cfg renderConfig) string {
	if a.Diff == "" {
		return cfg.style(cfg.styles.Context).Render(a.Summary)
	}

	var lang codeshell.Language
	if cfg.detector != nil {
		lang = cfg.detector.DetectFromPath(a.Path)
	}

	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(a.Diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			sb.WriteString(cfg.style(cfg.styles.FileHeader).Render(line))
		case strings.HasPrefix(line, "@@"):
			sb.WriteString(cfg.style(cfg.styles.HunkHeader).Render(line))
		case strings.HasPrefix(line, "+"):
			sb.WriteString(renderCode("+", line[1:], lang, cfg.styles.Added, cfg))
		case strings.HasPrefix(line, "-"):
			sb.WriteString(renderCode("-", line[1:], lang, cfg.styles.Deleted, cfg))
		case strings.HasPrefix(line, " "):
			sb.WriteString(renderCode(" ", line[1:], lang, cfg.styles.Context, cfg))
		default:
			sb.WriteString(cfg.style(cfg.styles.Muted).Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderCode renders one diff line, using syntax colors over the diff
// background when the tokenizer knows the language.
func renderCode(prefix, code string, lang codeshell.Language, colors codeshell.ColorPair, cfg renderConfig) string {
	code = expandTabs(code, len(prefix))
	base := cfg.style(colors)

	var tokens []codeshell.Token
	if cfg.tokenizer != nil {
		if lines := cfg.tokenizer.TokenizeLines(lang, code); len(lines) == 1 {
			tokens = lines[0]
		}
	}
	if tokens == nil {
		return base.Render(prefix + code)
	}

	var sb strings.Builder
	sb.WriteString(base.Render(prefix))
	for _, tok := range tokens {
		st := tok.Style
		if st.Foreground == "" {
			st.Foreground = colors.Foreground
		}
		s := lgtheme.TokenStyle(st, cfg.renderer)
		if colors.Background != "" {
			s = s.Background(lipgloss.Color(colors.Background))
		}
		sb.WriteString(s.Render(tok.Text))
	}
	return sb.String()
}

// expandTabs converts tabs to spaces at tabWidth stops, counting display
// columns from startCol.
func expandTabs(s string, startCol int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var sb strings.Builder
	col := startCol
	for _, r := range s {
		if r != '\t' {
			sb.WriteRune(r)
			col += lipgloss.Width(string(r))
			continue
		}
		next := (col/tabWidth + 1) * tabWidth
		sb.WriteString(strings.Repeat(" ", next-col))
		col = next
	}
	return sb.String()
}
