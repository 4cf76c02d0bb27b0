package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"medrag/internal/domain"
	"medrag/internal/service"
)

// MaxHistory is the number of earlier turns sent along with a question.
const MaxHistory = 8

// Asker is the TUI-facing subset of the RAG service.
type Asker interface {
	Ask(ctx context.Context, q domain.Query) (service.Answer, error)
}

type entry struct {
	question string
	answer   string
	sources  []string
	failed   bool
}

// answerMsg delivers the outcome of the query numbered seq.
type answerMsg struct {
	seq int
	ans service.Answer
	err error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	asker      Asker
	k          int
	info       string
	input      textinput.Model
	viewport   viewport.Model
	transcript []entry
	history    []domain.Turn
	status     string
	ready      bool

	pending  bool
	question string
	seq      int
	cancel   context.CancelFunc
}

// New creates a chat model. k is the number of chunks retrieved per question; info is
// shown under the header.
func New(asker Asker, k int, info string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the document collection and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{asker: asker, k: k, info: info, input: ti, viewport: vp, status: "Ready. Esc cancels a running query, Ctrl+C quits."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+info, status, input box, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		if msg.seq != m.seq || !m.pending {
			return m, nil
		}
		m.finish(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEsc:
			if m.pending && m.cancel != nil {
				m.cancel()
				m.status = "Canceling..."
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp:
			m.viewport.HalfViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.viewport.HalfViewDown()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return m, nil
	}
	if m.pending {
		m.status = "Still answering the previous question. Esc cancels it."
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.seq++
	m.pending = true
	m.question = q
	m.cancel = cancel
	m.input.SetValue("")
	m.status = "Thinking..."
	m.refresh()

	query := domain.Query{Text: q, K: m.k, History: append([]domain.Turn(nil), m.history...)}
	asker, seq := m.asker, m.seq
	return m, func() tea.Msg {
		ans, err := asker.Ask(ctx, query)
		return answerMsg{seq: seq, ans: ans, err: err}
	}
}

func (m *Model) finish(msg answerMsg) {
	m.pending = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if msg.err != nil {
		text := domain.Describe(msg.err)
		if domain.Retryable(msg.err) {
			text += " (retryable)"
		}
		m.transcript = append(m.transcript, entry{question: m.question, answer: text, failed: true})
		m.status = "Error: " + domain.Kind(msg.err)
	} else {
		resp := msg.ans.Response
		m.transcript = append(m.transcript, entry{question: m.question, answer: resp.AnswerText, sources: resp.Sources})
		m.history = append(m.history,
			domain.Turn{Role: "user", Content: m.question},
			domain.Turn{Role: "assistant", Content: resp.AnswerText})
		if len(m.history) > MaxHistory {
			m.history = m.history[len(m.history)-MaxHistory:]
		}
		m.status = fmt.Sprintf("Answered from %d of %d retrieved chunks, %d tokens.",
			len(resp.Sources), msg.ans.Retrieved, msg.ans.Usage.TotalTokens)
	}
	m.question = ""
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Medical Research Q&A")
	info := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.info)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + info + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 && !m.pending {
		return "No questions yet."
	}
	var sb strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: " + e.question))
		sb.WriteByte('\n')
		if e.failed {
			sb.WriteString(errorStyle.Render(e.answer))
			continue
		}
		sb.WriteString(e.answer)
		if len(e.sources) > 0 {
			sb.WriteByte('\n')
			sb.WriteString(sourcesStyle.Render("Sources: " + strings.Join(e.sources, ", ")))
		}
	}
	if m.pending {
		if len(m.transcript) > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: " + m.question))
		sb.WriteString("\n...")
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourcesStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
