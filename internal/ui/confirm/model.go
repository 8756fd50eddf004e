// Package confirm is a yes/no dialog built on a huh form.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg reports the user's answer for the dialog identified by ID.
type ResultMsg struct {
	ID string
	OK bool
}

// Model is a single confirmation prompt.
type Model struct {
	id     string
	form   *huh.Form
	answer *bool
	width  int
	height int
}

// New builds a dialog. Cancelling counts as "no".
func New(id, title, description, yes string, width, height int) Model {
	answer := new(bool)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative(yes).
				Negative("Cancel").
				Value(answer),
		),
	).WithWidth(min(max(width-4, 40), 80)).WithShowHelp(false)

	return Model{id: id, form: form, answer: answer, width: width, height: height}
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Update forwards input to the form and emits a ResultMsg when it ends.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		id := m.id
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{ID: id} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		id, ok := m.id, *m.answer
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{ID: id, OK: ok} }
	case huh.StateAborted:
		id := m.id
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{ID: id} }
	}
	return m, cmd
}

// Active reports whether the dialog is waiting for an answer.
func (m Model) Active() bool { return m.form != nil }

// View renders the dialog centered in the content area.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(m.form.View())
}
