package tui

import (
	"context"
	"strings"

	"auticare/types"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Chatter is the bot behind the terminal session.
type Chatter interface {
	Ask(ctx context.Context, message string, history []types.Message) (string, error)
}

// Rememberer is implemented by bots that can summarize their own memory.
type Rememberer interface {
	Memory() string
}

// Session describes one bot for the terminal.
type Session struct {
	Title    string
	Speaker  string
	Farewell string
	Bot      Chatter
}

type replyMsg struct {
	question string
	answer   string
	err      error
}

// Keep the last few exchanges for bots that take history from the caller.
const historyMessages = 10

type Model struct {
	session  Session
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	history  []types.Message
	status   string
	waiting  bool
	ready    bool
	done     bool
}

func New(s Session) Model {
	ti := textinput.New()
	ti.Prompt = s.Speaker + "> "
	ti.Placeholder = "Ask a question, 'quit' to exit"
	ti.Focus()
	ti.CharLimit = 2000
	return Model{
		session:  s,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Type 'quit' to exit",
	}
}

// Farewell reports whether the user ended the session with a quit word.
func (m Model) Farewell() (string, bool) {
	return m.session.Farewell, m.done
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		h := msg.Height - bh - ih - 3
		if h < 3 {
			h = 3
		}
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = h
		m.refresh()
		return m, nil
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.lines = append(m.lines, botStyle.Render("Assistant: ")+msg.answer)
		m.history = append(m.history,
			types.Message{Role: types.RoleUser, Content: msg.question},
			types.Message{Role: types.RoleAssistant, Content: msg.answer},
		)
		if len(m.history) > historyMessages {
			m.history = m.history[len(m.history)-historyMessages:]
		}
		m.status = "Type 'quit' to exit"
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.done = true
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.SetValue("")

	switch strings.ToLower(text) {
	case "quit", "exit", "bye":
		m.done = true
		return m, tea.Quit
	case "memory":
		if r, ok := m.session.Bot.(Rememberer); ok {
			m.lines = append(m.lines, botStyle.Render("Memory: ")+r.Memory())
			m.refresh()
			return m, nil
		}
	}

	m.lines = append(m.lines, userStyle.Render(m.session.Speaker+": ")+text)
	m.waiting = true
	m.status = "Thinking..."
	m.refresh()
	return m, ask(m.session.Bot, text, append([]types.Message(nil), m.history...))
}

func ask(bot Chatter, question string, history []types.Message) tea.Cmd {
	return func() tea.Msg {
		answer, err := bot.Ask(context.Background(), question, history)
		return replyMsg{question: question, answer: answer, err: err}
	}
}

func (m *Model) refresh() {
	content := strings.Join(m.lines, "\n\n")
	if m.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(m.viewport.Width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(m.session.Title)
	status := statusStyle.Render(m.status)
	return header + "\n" + transcriptStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View()) + "\n" + status
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)
