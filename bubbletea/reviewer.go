// Package bubbletea provides a terminal UI for reviewing staged batches
// using the Bubble Tea framework.
package bubbletea

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/codeshell"
	lgtheme "github.com/fwojciec/codeshell/lipgloss"
)

// Compile-time interface verification.
var _ codeshell.Reviewer = (*Reviewer)(nil)

// Decision is the outcome of a review.
type Decision int

// Review decisions.
const (
	Undecided Decision = iota
	Approved
	Rejected
)

// maxListHeight caps the lines the action list takes from the diff view.
const maxListHeight = 10

// Model is the Bubble Tea model for reviewing one batch.
type Model struct {
	batch    *codeshell.Batch
	keymap   KeyMap
	cfg      renderConfig
	cursor   int
	viewport viewport.Model
	ready    bool
	height   int
	decision Decision
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithRenderer sets the Lipgloss renderer, which fixes the color profile.
func WithRenderer(r *lipgloss.Renderer) ModelOption {
	return func(m *Model) {
		m.cfg.renderer = r
	}
}

// WithTheme sets the color theme.
func WithTheme(t codeshell.Theme) ModelOption {
	return func(m *Model) {
		m.cfg.styles = t.Styles()
	}
}

// WithLanguageDetector enables syntax highlighting of diffs together with
// WithTokenizer.
func WithLanguageDetector(d codeshell.LanguageDetector) ModelOption {
	return func(m *Model) {
		m.cfg.detector = d
	}
}

// WithTokenizer sets the tokenizer used for syntax highlighting.
func WithTokenizer(t codeshell.Tokenizer) ModelOption {
	return func(m *Model) {
		m.cfg.tokenizer = t
	}
}

// NewModel creates a Model reviewing b.
func NewModel(b *codeshell.Batch, opts ...ModelOption) Model {
	m := Model{
		batch:  b,
		keymap: DefaultKeyMap(),
		cfg:    renderConfig{styles: lgtheme.DefaultTheme().Styles()},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Decision returns the outcome of the review.
func (m Model) Decision() Decision {
	return m.decision
}

// Cursor returns the index of the selected action.
func (m Model) Cursor() int {
	return m.cursor
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Approve):
			m.decision = Approved
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Reject):
			m.decision = Rejected
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Down):
			m.selectAction(m.cursor + 1)
			return m, nil
		case key.Matches(msg, m.keymap.Up):
			m.selectAction(m.cursor - 1)
			return m, nil
		case key.Matches(msg, m.keymap.HalfPageDown):
			m.viewport.HalfPageDown()
			return m, nil
		case key.Matches(msg, m.keymap.HalfPageUp):
			m.viewport.HalfPageUp()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.cfg.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.diffHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.diffHeight()
		}
		m.viewport.SetContent(m.renderContent())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	help := m.cfg.style(m.cfg.styles.Muted).Render(m.keymap.help())
	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(m.batch, m.cfg),
		renderList(m.batch, m.cursor, m.cfg),
		m.viewport.View(),
		help,
	)
}

func (m *Model) selectAction(i int) {
	if i < 0 || i >= len(m.batch.Actions) || i == m.cursor {
		return
	}
	m.cursor = i
	if m.ready {
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
	}
}

// diffHeight is what remains for the diff after the header, the list and
// the help line.
func (m Model) diffHeight() int {
	list := min(len(m.batch.Actions)+len(m.batch.Failures), maxListHeight)
	return max(1, m.height-list-2)
}

func (m Model) renderContent() string {
	if len(m.batch.Actions) == 0 {
		return m.cfg.style(m.cfg.styles.Warning).Render("nothing to apply")
	}
	return renderAction(m.batch.Actions[m.cursor], m.cfg)
}

// Reviewer implements codeshell.Reviewer with a full-screen TUI.
type Reviewer struct {
	in   io.Reader
	out  io.Writer
	opts []ModelOption
}

// NewReviewer creates a Reviewer reading keys from in and drawing to out.
// Nil streams fall back to the terminal.
func NewReviewer(in io.Reader, out io.Writer, opts ...ModelOption) *Reviewer {
	return &Reviewer{in: in, out: out, opts: opts}
}

// Review shows b and blocks until the user approves or rejects it.
func (r *Reviewer) Review(ctx context.Context, b *codeshell.Batch) (bool, error) {
	popts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if r.in != nil {
		popts = append(popts, tea.WithInput(r.in))
	}
	if r.out != nil {
		popts = append(popts, tea.WithOutput(r.out))
	}
	final, err := tea.NewProgram(NewModel(b, r.opts...), popts...).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(Model)
	return ok && m.decision == Approved, nil
}
