package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/theme"
)

// CloseMsg asks the parent to close the history view.
type CloseMsg struct{}

// Entry is one mailbox of the local history with its message counts.
type Entry struct {
	Record model.MailboxRecord
	Seen   int
	Read   int
}

// Model lists the mailboxes used on this machine.
type Model struct {
	entries  []Entry
	loading  bool
	err      error
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new history view model.
func New(keys *keys.KeyMap, width, height int) Model {
	m := Model{
		viewport: viewport.New(width, max(height-4, 1)),
		keys:     keys,
	}
	m.SetSize(width, height)
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update closes the view on the back key and scrolls otherwise.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return CloseMsg{} }
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// StartLoading shows the loading state.
func (m *Model) StartLoading() {
	m.loading = true
	m.err = nil
	m.entries = nil
	m.viewport.SetContent("")
}

// SetEntries shows the loaded history, or err when loading failed.
func (m *Model) SetEntries(entries []Entry, err error) {
	m.loading = false
	m.entries = entries
	m.err = err
	m.viewport.SetContent(m.renderRows())
	m.viewport.GotoTop()
}

// Entries returns the loaded entries.
func (m Model) Entries() []Entry { return m.entries }

// View renders the history view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var body string
	gray := lipgloss.NewStyle().Foreground(theme.ColorGray)
	switch {
	case m.loading:
		body = gray.Render("Loading history...")
	case m.err != nil:
		body = lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error())
	case len(m.entries) == 0:
		body = gray.Render("No mailboxes recorded yet.")
	default:
		body = m.viewport.View()
	}

	content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Mailbox History"), body)
	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m Model) renderRows() string {
	if len(m.entries) == 0 {
		return ""
	}

	addrWidth := 0
	for _, e := range m.entries {
		addrWidth = max(addrWidth, len(e.Record.Address))
	}
	addrStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite).Width(addrWidth + 2)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	activeStyle := lipgloss.NewStyle().Foreground(theme.ColorGreen)

	rows := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		status := activeStyle.Render("active")
		if e.Record.RetiredAt != nil {
			status = metaStyle.Render("retired " + e.Record.RetiredAt.Local().Format("2006-01-02 15:04"))
		}
		rows = append(rows, strings.Join([]string{
			addrStyle.Render(e.Record.Address),
			metaStyle.Render(fmt.Sprintf("%-9s", e.Record.ProviderID)),
			metaStyle.Render(e.Record.CreatedAt.Local().Format("2006-01-02 15:04")),
			metaStyle.Render(fmt.Sprintf("%d seen, %d read", e.Seen, e.Read)),
			status,
		}, "  "))
	}
	return strings.Join(rows, "\n")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-8, 1)
	m.viewport.Height = max(height-8, 1)
}
