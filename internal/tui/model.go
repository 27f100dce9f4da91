package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/domain"
	"pdfrag/internal/rag"
	"pdfrag/internal/registry"
	"pdfrag/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	ListIndexes() ([]registry.Metadata, error)
	OpenIndex(id string) (*service.OpenedIndex, error)
	Ask(ctx context.Context, opened *service.OpenedIndex, question string) (*domain.Answer, error)
}

type mode int

const (
	modePicker mode = iota
	modeChat
)

type (
	indexesMsg struct {
		indexes []registry.Metadata
		err     error
	}
	openedMsg struct {
		opened *service.OpenedIndex
		err    error
	}
	answerMsg struct {
		turn Turn
	}
)

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	service  RAGPort
	session  *Session
	mode     mode
	indexes  []registry.Metadata
	cursor   int
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	status   string
	ready    bool
	initial  string
}

// New creates a chat model. When initialID is not empty that index is opened
// straight away; otherwise the user picks one from the list.
func New(ctx context.Context, svc RAGPort, initialID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.CharLimit = 0
	m := Model{
		ctx:      ctx,
		service:  svc,
		session:  &Session{},
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:   "Loading indexes...",
	}
	if initialID != "" {
		m.busy = true
		m.initial = initialID
		m.status = "Opening " + initialID + "..."
	}
	return m
}

// Session exposes the chat state, mainly for tests and the caller after exit.
func (m Model) Session() *Session { return m.session }

// Init loads the index list, or opens the preselected index.
func (m Model) Init() tea.Cmd {
	if m.initial != "" {
		return tea.Batch(m.spinner.Tick, m.openCmd(m.initial))
	}
	return m.listCmd()
}

func (m Model) listCmd() tea.Cmd {
	return func() tea.Msg {
		list, err := m.service.ListIndexes()
		return indexesMsg{indexes: list, err: err}
	}
}

func (m Model) openCmd(id string) tea.Cmd {
	return func() tea.Msg {
		opened, err := m.service.OpenIndex(id)
		return openedMsg{opened: opened, err: err}
	}
}

func (m Model) askCmd(opened *service.OpenedIndex, question string) tea.Cmd {
	return func() tea.Msg {
		turn := Turn{Question: question}
		ans, err := m.service.Ask(m.ctx, opened, question)
		if err != nil {
			turn.Err = err
			return answerMsg{turn: turn}
		}
		turn.Answer = ans.Text
		turn.Sources = rag.FormatSources(ans.Sources)
		return answerMsg{turn: turn}
	}
}

// Update handles key, window and async result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		reserved := 3 + bh*2 + 1 // header, summary, status, two boxes, input line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case indexesMsg:
		m.indexes = msg.indexes
		m.cursor = 0
		switch {
		case msg.err != nil:
			m.status = "Error: " + service.Explain(msg.err)
		case len(m.indexes) == 0:
			m.status = "No indexes yet. Build one with: pdfrag build --name NAME FILES..."
		case !strings.HasPrefix(m.status, "Error:"):
			m.status = "Select an index and press Enter."
		}
		return m, nil

	case openedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + service.Explain(msg.err)
			m.mode = modePicker
			return m, m.listCmd()
		}
		m.session.Select(msg.opened)
		m.mode = modeChat
		m.input.Reset()
		m.status = fmt.Sprintf("Chatting with %q. Esc returns to the index list.", msg.opened.Meta.Name)
		m.viewport.SetContent(m.renderHistory())
		return m, m.input.Focus()

	case answerMsg:
		m.busy = false
		m.session.Record(msg.turn)
		if msg.turn.Err != nil {
			m.status = "Error: " + service.Explain(msg.turn.Err)
		} else {
			m.status = fmt.Sprintf("%d sources", len(msg.turn.Sources))
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.mode == modePicker {
			return m.updatePicker(msg)
		}
		return m.updateChat(msg)
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "down", "j":
		if len(m.indexes) > 0 {
			m.cursor = (m.cursor + 1) % len(m.indexes)
		}
	case "up", "k":
		if len(m.indexes) > 0 {
			m.cursor = (m.cursor - 1 + len(m.indexes)) % len(m.indexes)
		}
	case "enter":
		if len(m.indexes) == 0 || m.busy {
			return m, nil
		}
		id := m.indexes[m.cursor].ID
		m.busy = true
		m.status = "Opening " + id + "..."
		return m, tea.Batch(m.spinner.Tick, m.openCmd(id))
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.busy {
			return m, nil
		}
		m.mode = modePicker
		m.input.Blur()
		m.status = "Select an index and press Enter."
		return m, m.listCmd()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.busy {
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.status = "Thinking..."
		return m, tea.Batch(m.spinner.Tick, m.askCmd(m.session.Index(), q))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders either the index picker or the chat.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	if m.mode == modePicker {
		return headerStyle.Render("pdfrag: indexes") + "\n" + boxStyle.Render(m.renderPicker()) + "\n" + status
	}
	meta, _ := m.session.Meta()
	header := headerStyle.Render("pdfrag: " + meta.Name)
	summary := dimStyle.Render(truncate(meta.Summary, max(20, m.viewport.Width)))
	return header + "\n" + summary + "\n" + boxStyle.Render(m.viewport.View()) + "\n" +
		boxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderPicker() string {
	if len(m.indexes) == 0 {
		return "No indexes."
	}
	var b strings.Builder
	for i, meta := range m.indexes {
		line := fmt.Sprintf("%s  (%d docs, %d chunks, %s)", displayName(meta), meta.DocCount, meta.ChunkCount, meta.CreatedAt.Local().Format("2006-01-02 15:04"))
		if i == m.cursor {
			b.WriteString(highlightStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		if i < len(m.indexes)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderHistory() string {
	turns := m.session.History()
	if len(turns) == 0 {
		return "Ask anything about the indexed documents."
	}
	width := max(20, m.viewport.Width-2)
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.Question))
		b.WriteString("\n")
		if t.Err != nil {
			b.WriteString(errorStyle.Render("Error: " + service.Explain(t.Err)))
			continue
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Render(t.Answer))
		if len(t.Sources) > 0 {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render("Sources:"))
			for _, src := range t.Sources {
				b.WriteString("\n")
				b.WriteString(dimStyle.Width(width).Render("- " + highlightBestSentence(src, t.Question)))
			}
		}
	}
	return b.String()
}

func displayName(meta registry.Metadata) string {
	if meta.Name != "" {
		return meta.Name
	}
	return meta.ID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var (
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// highlightBestSentence emphasises the sentence of text sharing the most
// words with query.
func highlightBestSentence(text, query string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	qTokens := toTokenSet(query)
	if len(sentences) < 2 || len(qTokens) == 0 {
		return text
	}
	bestIdx, bestScore := -1, 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return text
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, "")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	seen := map[string]struct{}{}
	score := 0
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
