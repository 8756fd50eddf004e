package inbox

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/theme"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	ID string
}

// Model is the inbox list view component.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	read    map[string]bool
	address string
	focused bool
	width   int
	height  int
}

// New creates a new inbox model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, max(height-2, 1))
	l.Title = "Inbox"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:    l,
		keys:    k,
		read:    make(map[string]bool),
		focused: true,
		width:   width,
		height:  height,
	}
}

// SetMessages replaces the whole list. The cursor stays on the same
// message when it is still present.
func (m *Model) SetMessages(address string, msgs []model.MessageSummary) tea.Cmd {
	if address != m.address {
		m.address = address
		m.read = make(map[string]bool)
	}

	selected := m.SelectedID()

	items := make([]list.Item, len(msgs))
	cursor := 0
	for i, msg := range msgs {
		items[i] = MessageItem{Message: msg, Read: m.read[msg.ID]}
		if msg.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// SetRead replaces the set of read message ids.
func (m *Model) SetRead(ids map[string]bool) {
	m.read = make(map[string]bool, len(ids))
	for id := range ids {
		m.read[id] = true
	}
	m.refreshItems()
}

// MarkRead flags one message as read.
func (m *Model) MarkRead(id string) {
	m.read[id] = true
	m.refreshItems()
}

func (m *Model) refreshItems() {
	items := m.list.Items()
	for i, it := range items {
		mi, ok := it.(MessageItem)
		if !ok {
			continue
		}
		mi.Read = m.read[mi.Message.ID]
		items[i] = mi
	}
	m.list.SetItems(items)
}

// Len returns the number of messages shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// UnreadCount returns how many shown messages have not been opened.
func (m Model) UnreadCount() int {
	n := 0
	for _, it := range m.list.Items() {
		if mi, ok := it.(MessageItem); ok && !m.read[mi.Message.ID] {
			n++
		}
	}
	return n
}

// Address returns the mailbox the list belongs to.
func (m Model) Address() string { return m.address }

// SelectedID returns the id under the cursor, or "".
func (m Model) SelectedID() string {
	if mi, ok := m.list.SelectedItem().(MessageItem); ok {
		return mi.Message.ID
	}
	return ""
}

// Focus sets whether the list receives navigation keys.
func (m *Model) Focus(focused bool) {
	m.focused = focused
}

// Focused reports whether the list has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, m.keys.Select) {
			id := m.SelectedID()
			if id == "" {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedMessageMsg{ID: id}
			}
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox.
func (m Model) View() string {
	border := theme.BorderStyle
	if m.focused {
		border = theme.FocusedBorderStyle
	}
	inner := m.list.View()
	if len(m.list.Items()) == 0 {
		inner = m.renderEmptyState()
	}
	return border.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(inner)
}

// renderEmptyState shows guidance text while the inbox is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.address == "" {
		return style.Render("No mailbox yet.\n\nPress n to create one.")
	}
	return style.Render("Waiting for incoming emails...\n\nMessages show up here automatically.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(max(width-2, 1), max(height-2, 1))
}
