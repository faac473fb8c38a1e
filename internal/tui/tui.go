// Package tui is the terminal rendition of the single-button page: one
// centered "Comuta LED" button that fires a toggle on every press.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/comuta/internal/toggle"
)

// DefaultLabel is the caption of the button.
const DefaultLabel = "Comuta LED"

const defaultFlash = 120 * time.Millisecond

// Toggler is what the button drives. *toggle.Client satisfies it. Activate
// must register the activation before returning and call done once it ends.
type Toggler interface {
	Activate(ctx context.Context, done func(toggle.Result))
}

// resultMsg carries a finished activation back into the program. The outcome
// has already been logged by the toggler; the view does nothing with it.
type resultMsg struct{ res toggle.Result }

// flashDoneMsg ends the pressed highlight started by activation seq.
type flashDoneMsg struct{ seq int }

// Model is the Bubble Tea model for the button view.
type Model struct {
	ctx     context.Context
	toggler Toggler
	send    func(tea.Msg) // delivers results back into the running program

	label  string
	keys   keyMap
	help   help.Model
	styles styles
	flash  time.Duration

	width, height int

	pressed     bool
	flashSeq    int
	activations int // presses so far, each one issued its own request
}

// Option tweaks a Model.
type Option func(*Model)

// WithLabel replaces the button caption. Empty keeps DefaultLabel.
func WithLabel(label string) Option {
	return func(m *Model) {
		if label != "" {
			m.label = label
		}
	}
}

// WithTheme picks the lipgloss palette: classic, neon or mono.
func WithTheme(name string) Option {
	return func(m *Model) { m.styles = stylesFor(name) }
}

// WithFlash sets how long the button stays highlighted after a press.
func WithFlash(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.flash = d
		}
	}
}

// New builds the model. ctx is handed to every toggle request.
func New(ctx context.Context, t Toggler, opts ...Option) Model {
	m := Model{
		ctx:     ctx,
		toggler: t,
		label:   DefaultLabel,
		keys:    defaultKeys(),
		help:    help.New(),
		styles:  stylesFor("classic"),
		flash:   defaultFlash,
		send:    func(tea.Msg) {},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run starts the program on the alternate screen with mouse support and
// blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, t Toggler, opts ...Option) error {
	var p *tea.Program
	m := New(ctx, t, opts...)
	m.send = func(msg tea.Msg) { p.Send(msg) }

	p = tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

// Activations reports how many times the button was pressed.
func (m Model) Activations() int { return m.activations }

// Update and View implement Bubble Tea's Model
func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Press):
			return m.activate()
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && m.hit(msg.X, msg.Y) {
			return m.activate()
		}

	case resultMsg:
		return m, nil

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.pressed = false
		}
		return m, nil
	}
	return m, nil
}

// activate fires one toggle. Nothing guards against a request already in
// flight: every press is its own request. The request starts here rather than
// in a Cmd so it is registered with the toggler before the program can quit.
func (m Model) activate() (tea.Model, tea.Cmd) {
	m.activations++
	m.pressed = true
	m.flashSeq++
	seq := m.flashSeq

	send := m.send
	m.toggler.Activate(m.ctx, func(res toggle.Result) { send(resultMsg{res: res}) })

	return m, tea.Tick(m.flash, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func (m Model) View() string {
	w, h := m.size()
	helpView := m.styles.help.Render(m.help.View(m.keys))
	area := h - lipgloss.Height(helpView)

	body := lipgloss.Place(w, area, lipgloss.Center, lipgloss.Center, m.button())
	return body + "\n" + helpView
}

func (m Model) button() string {
	if m.pressed {
		return m.styles.pressed.Render(m.label)
	}
	return m.styles.button.Render(m.label)
}

// size falls back to 80x24 until the first WindowSizeMsg arrives.
func (m Model) size() (int, int) {
	w, h := 80, 24
	if m.width > 0 && m.height > 0 {
		w, h = m.width, m.height
	}
	return w, h
}

// hit reports whether the cell (x, y) lies on the button, using the same
// centering lipgloss.Place applies in View.
func (m Model) hit(x, y int) bool {
	w, h := m.size()
	btn := m.button()
	bw, bh := lipgloss.Width(btn), lipgloss.Height(btn)
	area := h - lipgloss.Height(m.styles.help.Render(m.help.View(m.keys)))

	left, top := 0, 0
	if w > bw {
		left = (w - bw) / 2
	}
	if area > bh {
		top = (area - bh) / 2
	}
	return x >= left && x < left+bw && y >= top && y < top+bh
}
