package storefront

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noah-isme/cbhub/internal/pricing"
	"github.com/noah-isme/cbhub/internal/widget"
)

const maxTUILines = 12

// TUI is a full-screen front end over the same commands as Shell. While the
// payment widget is open, typed input becomes the provider reference and esc
// closes the widget.
type TUI struct {
	ctx   context.Context
	shell *Shell
	out   *bytes.Buffer

	input  string
	lines  []string
	busy   bool
	prompt *widgetPrompt
}

type commandDoneMsg struct {
	output string
	quit   bool
}

type widgetPrompt struct {
	setup widget.Setup
	cb    widget.Callbacks
}

// NewTUI wraps shell. Shell.Out is replaced; command output is shown in the TUI.
func NewTUI(ctx context.Context, shell *Shell) *TUI {
	out := &bytes.Buffer{}
	shell.Out = out
	return &TUI{ctx: ctx, shell: shell, out: out, lines: []string{"type help for commands"}}
}

func (m *TUI) Init() tea.Cmd { return nil }

func (m *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case widgetPrompt:
		m.prompt = &msg
		m.input = ""
	case commandDoneMsg:
		m.busy = false
		m.appendOutput(msg.output)
		if msg.quit {
			return m, tea.Quit
		}
	case tea.KeyMsg:
		return m.key(msg)
	}
	return m, nil
}

func (m *TUI) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.prompt != nil {
			m.closeWidget()
		}
		return m, tea.Quit
	case tea.KeyEsc:
		if m.prompt != nil {
			m.closeWidget()
		}
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyEnter:
		line := strings.TrimSpace(m.input)
		m.input = ""
		if m.prompt != nil {
			if line == "" {
				m.closeWidget()
			} else {
				cb := m.prompt.cb
				m.prompt = nil
				cb.OnSuccess(line)
			}
			return m, nil
		}
		if line == "" || m.busy {
			return m, nil
		}
		m.busy = true
		m.appendOutput("> " + line)
		return m, m.run(line)
	}
	return m, nil
}

func (m *TUI) closeWidget() {
	cb := m.prompt.cb
	m.prompt = nil
	cb.OnClose()
}

// run executes line off the update loop; pay blocks until the widget prompt
// is answered through later key messages.
func (m *TUI) run(line string) tea.Cmd {
	return func() tea.Msg {
		m.out.Reset()
		quit := m.shell.Exec(m.ctx, line)
		return commandDoneMsg{output: m.out.String(), quit: quit}
	}
}

func (m *TUI) appendOutput(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if l != "" {
			m.lines = append(m.lines, l)
		}
	}
	if extra := len(m.lines) - maxTUILines; extra > 0 {
		m.lines = m.lines[extra:]
	}
}

func (m *TUI) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Centuryboy's Hub")
	fmt.Fprintln(&b)
	WriteView(&b, m.shell.Panel.Render())
	fmt.Fprintln(&b)
	for _, l := range m.lines {
		fmt.Fprintln(&b, l)
	}
	fmt.Fprintln(&b)
	switch {
	case m.prompt != nil:
		s := m.prompt.setup
		fmt.Fprintf(&b, "Paystack: %s for %s (ref %s)\n", pricing.Format(s.Currency, s.Amount), s.Email, s.Ref)
		fmt.Fprintf(&b, "reference> %s_\n", m.input)
		fmt.Fprintln(&b, "enter confirms, esc cancels")
	case m.busy:
		fmt.Fprintln(&b, "working...")
	default:
		fmt.Fprintf(&b, "> %s_\n", m.input)
	}
	return b.String()
}

// PromptOpener is the widget.Opener for the TUI. Send is normally
// (*tea.Program).Send; the prompt it delivers is answered by key input.
type PromptOpener struct {
	mu   sync.Mutex
	Send func(tea.Msg)
}

// Open implements widget.Opener.
func (o *PromptOpener) Open(_ context.Context, setup widget.Setup, cb widget.Callbacks) error {
	o.mu.Lock()
	send := o.Send
	o.mu.Unlock()
	if send == nil {
		return fmt.Errorf("prompt opener not attached to a program")
	}
	send(widgetPrompt{setup: setup, cb: cb})
	return nil
}

// Attach sets the message sink once the program exists.
func (o *PromptOpener) Attach(send func(tea.Msg)) {
	o.mu.Lock()
	o.Send = send
	o.mu.Unlock()
}
