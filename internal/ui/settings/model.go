package settings

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeOverview Mode = iota // Current settings
	ModeFormKey              // API key form
	ModeConfirmClear         // Confirm key removal
)

// KeySaver stores the fallback provider's API key.
type KeySaver interface {
	SetAPIKey(key string) error
}

// ConfigSaver writes the non-secret settings back to the config file.
type ConfigSaver interface {
	SetPersistSession(on bool) error
}

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// APIKeySavedMsg is sent after the key was stored. An empty Key means the
// key was removed.
type APIKeySavedMsg struct {
	Key string
}

type keySavedInternalMsg struct {
	key string
	err error
}

type persistSavedMsg struct {
	on  bool
	err error
}

// Info is the read-only part of the overview.
type Info struct {
	ConfigPath     string
	LogFile        string
	PersistSession bool
	KeyConfigured  bool
}

// formValues is heap allocated so huh keeps writing to the same fields
// while the model is copied between updates.
type formValues struct {
	apiKey  string
	confirm bool
}

// Model is the Bubble Tea model for the settings overlay.
type Model struct {
	mode      Mode
	saver     KeySaver
	config    ConfigSaver
	info      Info
	values    *formValues
	keyForm   *huh.Form
	clearForm *huh.Form
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new settings view model.
func New(saver KeySaver, info Info, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   ModeOverview,
		saver:  saver,
		info:   info,
		values: &formValues{},
		keys:   k,
		width:  width,
		height: height,
	}
}

// WithConfigSaver returns the model with cs used to save config changes.
func (m Model) WithConfigSaver(cs ConfigSaver) Model {
	m.config = cs
	return m
}

// Init resets the view to its overview.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open returns the model reset to the overview.
func (m Model) Open() Model {
	m.mode = ModeOverview
	m.statusMsg = ""
	return m
}

// Mode returns the current mode.
func (m Model) Mode() Mode { return m.mode }

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case keySavedInternalMsg:
		m.mode = ModeOverview
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving API key: %v", msg.err)
			return m, nil
		}
		m.info.KeyConfigured = model.FallbackKeyConfigured(msg.key)
		if msg.key == "" {
			m.statusMsg = "API key removed"
		} else {
			m.statusMsg = "API key saved"
		}
		saved := msg.key
		return m, func() tea.Msg { return APIKeySavedMsg{Key: saved} }

	case persistSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving config: %v", msg.err)
			return m, nil
		}
		m.info.PersistSession = msg.on
		if msg.on {
			m.statusMsg = "Session resume on, applies on next start"
		} else {
			m.statusMsg = "Session resume off, applies on next start"
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeOverview {
			return m.handleOverviewKeys(msg)
		}
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeOverview
			return m, nil
		}
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleOverviewKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Settings):
		return m, func() tea.Msg { return DoneMsg{} }

	case msg.String() == "k":
		m.values.apiKey = ""
		m.keyForm = m.buildKeyForm()
		m.mode = ModeFormKey
		return m, m.keyForm.Init()

	case msg.String() == "p":
		return m, m.savePersist(!m.info.PersistSession)

	case msg.String() == "x":
		if !m.info.KeyConfigured {
			return m, nil
		}
		m.values.confirm = false
		m.clearForm = m.buildClearForm()
		m.mode = ModeConfirmClear
		return m, m.clearForm.Init()
	}
	return m, nil
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeFormKey:
		return m.updateKeyForm(msg)
	case ModeConfirmClear:
		return m.updateClearForm(msg)
	}
	return m, nil
}

// --- API key form ---

func (m *Model) buildKeyForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RapidAPI key").
				Description("Used by the fallback provider when mail.tm is unavailable").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.apiKey).
				Validate(validateAPIKey),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) updateKeyForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.keyForm == nil {
		return m, nil
	}

	mdl, cmd := m.keyForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.keyForm = f
	}

	switch m.keyForm.State {
	case huh.StateCompleted:
		return m, m.saveKey(strings.TrimSpace(m.values.apiKey))
	case huh.StateAborted:
		m.mode = ModeOverview
		return m, nil
	}
	return m, cmd
}

// --- Clear confirmation ---

func (m *Model) buildClearForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remove the stored RapidAPI key?").
				Description("The fallback provider stays disabled until a new key is set.").
				Affirmative("Yes, remove").
				Negative("Cancel").
				Value(&m.values.confirm),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) updateClearForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.clearForm == nil {
		return m, nil
	}

	mdl, cmd := m.clearForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.clearForm = f
	}

	switch m.clearForm.State {
	case huh.StateCompleted:
		if m.values.confirm {
			return m, m.saveKey("")
		}
		m.mode = ModeOverview
		return m, nil
	case huh.StateAborted:
		m.mode = ModeOverview
		return m, nil
	}
	return m, cmd
}

func (m Model) saveKey(k string) tea.Cmd {
	saver := m.saver
	return func() tea.Msg {
		if saver == nil {
			return keySavedInternalMsg{key: k, err: fmt.Errorf("no credential store available")}
		}
		return keySavedInternalMsg{key: k, err: saver.SetAPIKey(k)}
	}
}

func (m Model) savePersist(on bool) tea.Cmd {
	cs := m.config
	return func() tea.Msg {
		if cs == nil {
			return persistSavedMsg{on: on, err: fmt.Errorf("config file is not writable")}
		}
		return persistSavedMsg{on: on, err: cs.SetPersistSession(on)}
	}
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeFormKey:
		return m.viewForm(m.keyForm)
	case ModeConfirmClear:
		return m.viewForm(m.clearForm)
	default:
		return m.viewOverview()
	}
}

func (m Model) viewOverview() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(18)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	keyState := lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("configured")
	if !m.info.KeyConfigured {
		keyState = lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("not set (fallback disabled)")
	}
	persist := "off"
	if m.info.PersistSession {
		persist = "on"
	}

	rows := [][2]string{
		{"RapidAPI key", keyState},
		{"Resume session", persist},
		{"Config file", m.info.ConfigPath},
		{"Log file", m.info.LogFile},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true).
			Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"k set key | x remove key | p toggle resume | esc back",
	))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(f.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateAPIKey(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("API key is required")
	}
	if s == model.PlaceholderAPIKey {
		return fmt.Errorf("replace the placeholder with your own key")
	}
	if strings.ContainsAny(s, " \t") {
		return fmt.Errorf("API key must not contain spaces")
	}
	return nil
}
