package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/render"
	"github.com/nhle/tempinbox/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// DetailLoadedMsg carries the result of a message fetch. A nil Detail
// means the message could not be loaded.
type DetailLoadedMsg struct {
	ID     string
	Detail *model.MessageDetail
}

// Model is the message detail view component.
type Model struct {
	message  *model.MessageDetail
	id       string
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
	missing  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-2, 1))
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.SetMessage(msg.Detail)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return centered.Render("Loading message...")
	case m.missing:
		return centered.Render("This message is no longer available.\n\nPress esc to go back.")
	case m.message == nil:
		return centered.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	msg := m.message
	if msg == nil {
		return ""
	}

	var sections []string

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	from := msg.From.Display()
	if msg.From.Name != "" && msg.From.Address != "" {
		from = fmt.Sprintf("%s <%s>", msg.From.Name, msg.From.Address)
	}
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("From:"),
		valStyle.Render(from),
	))

	to := msg.To
	if to == "" {
		to = "me"
	}
	sections = append(sections, fmt.Sprintf(
		"%s    %s",
		metaStyle.Render("To:"),
		valStyle.Render(to),
	))

	if !msg.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04")),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := render.MessageBody(msg).String()
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("This message has no content.")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 10)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// StartLoading clears the current message and shows the loading state
// for id.
func (m *Model) StartLoading(id string) {
	m.id = id
	m.message = nil
	m.missing = false
	m.loading = true
}

// SetMessage shows a loaded message, or the "not available" state when
// detail is nil.
func (m *Model) SetMessage(detail *model.MessageDetail) {
	m.message = detail
	m.loading = false
	m.missing = detail == nil
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Reset clears the selection.
func (m *Model) Reset() {
	m.id = ""
	m.message = nil
	m.loading = false
	m.missing = false
	m.viewport.SetContent("")
}

// Loading reports whether a fetch is pending.
func (m Model) Loading() bool { return m.loading }

// Missing reports whether the last fetch failed.
func (m Model) Missing() bool { return m.missing }

// CurrentID returns the id being shown or loaded.
func (m Model) CurrentID() string { return m.id }

// Message returns the message being shown.
func (m Model) Message() *model.MessageDetail { return m.message }

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 1)
	if m.message != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
