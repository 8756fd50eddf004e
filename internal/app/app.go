package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/content"
	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/store"
	appsync "github.com/nhle/tempinbox/internal/sync"
	"github.com/nhle/tempinbox/internal/theme"
	"github.com/nhle/tempinbox/internal/ui"
	"github.com/nhle/tempinbox/internal/ui/articles"
	"github.com/nhle/tempinbox/internal/ui/command"
	"github.com/nhle/tempinbox/internal/ui/confirm"
	"github.com/nhle/tempinbox/internal/ui/detail"
	helpview "github.com/nhle/tempinbox/internal/ui/help"
	"github.com/nhle/tempinbox/internal/ui/history"
	"github.com/nhle/tempinbox/internal/ui/inbox"
	"github.com/nhle/tempinbox/internal/ui/settings"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewEmailDetail
	ViewArticleDetail
	ViewBlogList
	ViewBlogDetail
	ViewHelp
	ViewSettings
	ViewCommand
	ViewConfirm
	ViewHistory
)

const confirmDeleteID = "delete-mailbox"

// autoProvisionMsg starts the first provisioning when no session was
// resumed.
type autoProvisionMsg struct{}

// Deps are the collaborators of the root model.
type Deps struct {
	Gate    *gate.Gate
	Sync    *appsync.Synchronizer
	Catalog *content.Catalog

	// Store keeps mailbox history and read markers. It may be nil.
	Store store.Store

	// KeySaver persists the fallback API key from the settings view and
	// OnAPIKey applies it to the running provider.
	KeySaver settings.KeySaver
	OnAPIKey func(key string)
	Settings settings.Info

	// ConfigSaver writes settings changed in the UI to the config file.
	// It may be nil.
	ConfigSaver settings.ConfigSaver

	Clipboard func(string) error
	Logger    *zap.SugaredLogger
}

// Model is the root Bubble Tea model that routes between views and owns
// the mailbox actions.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	gate      *gate.Gate
	sync      *appsync.Synchronizer
	store     store.Store
	onAPIKey  func(string)
	clipboard func(string) error
	log       *zap.SugaredLogger

	inbox        inbox.Model
	guides       articles.ListModel
	blog         articles.ListModel
	reader       articles.Reader
	detail       detail.Model
	helpView     helpview.Model
	settingsView settings.Model
	commandView  command.Model
	confirmView  confirm.Model
	historyView  history.Model
	spinner      spinner.Model

	ready         bool
	provisioning  bool
	deleting      bool
	loadingIdx    int
	guidesFocused bool
	address       string
	notice        string
}

// New creates the root model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	if d.Catalog == nil {
		d.Catalog = content.Default()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Clipboard == nil {
		d.Clipboard = defaultClipboard
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	guides := articles.NewList("Guides", articles.GuideEntries(d.Catalog), k, true, 26, 24)
	guides.Focus(false)

	return Model{
		currentView:  ViewMain,
		keys:         k,
		gate:         d.Gate,
		sync:         d.Sync,
		store:        d.Store,
		onAPIKey:     d.OnAPIKey,
		clipboard:    d.Clipboard,
		log:          d.Logger.With("component", "app"),
		inbox:        inbox.New(k, 54, 24),
		guides:       guides,
		blog:         articles.NewList("Blog", articles.PostEntries(d.Catalog), k, false, 80, 24),
		reader:       articles.NewReader(d.Catalog, k, 80, 24),
		detail:       detail.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		settingsView: settings.New(d.KeySaver, d.Settings, k, 80, 24).WithConfigSaver(d.ConfigSaver),
		commandView:  command.New(80, 24),
		historyView:  history.New(k, 80, 24),
		spinner:      sp,
	}
}

// Init starts the synchronizer and, without a resumed session, the first
// provisioning.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.sync.Start()}
	if _, ok := m.gate.Store().Snapshot(); !ok {
		cmds = append(cmds, func() tea.Msg { return autoProvisionMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.provisioning && !m.deleting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadingTickMsg:
		if !m.provisioning {
			return m, nil
		}
		m.loadingIdx = (m.loadingIdx + 1) % len(loadingMessages)
		return m, loadingTick()

	case autoProvisionMsg:
		return m, m.startProvisioning()

	case provisionDoneMsg:
		m.provisioning = false
		if msg.err != nil && !errors.Is(msg.err, gate.ErrBusy) {
			m.log.Warnw("provisioning failed", "error", msg.err)
		}
		return m, nil

	case deleteDoneMsg:
		m.deleting = false
		switch {
		case errors.Is(msg.err, gate.ErrBusy):
			m.notice = "Mailbox is busy, try again in a moment"
		case msg.err != nil:
			m.log.Warnw("deleting mailbox failed", "error", msg.err)
		case msg.deleted:
			m.notice = "Mailbox deleted"
		}
		return m, nil

	case appsync.InboxUpdatedMsg:
		return m.handleInboxUpdate(msg)

	case readIDsLoadedMsg:
		if msg.address == m.inbox.Address() {
			m.inbox.SetRead(msg.ids)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Could not copy address: " + msg.err.Error()
		} else {
			m.notice = "Copied " + msg.address
		}
		return m, nil

	case inbox.SelectedMessageMsg:
		// The list stays on screen until the fetch completes.
		m.detail.StartLoading(msg.ID)
		m.inbox.MarkRead(msg.ID)
		m.notice = "Loading message..."
		return m, tea.Batch(
			m.fetchDetail(msg.ID),
			m.markRead(m.inbox.Address(), msg.ID),
		)

	case detail.DetailLoadedMsg:
		if msg.ID != m.detail.CurrentID() {
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		if m.currentView == ViewMain {
			m.notice = ""
			m.currentView = ViewEmailDetail
		}
		return m, cmd

	case detail.BackMsg:
		m.goMain()
		return m, nil

	case articles.SelectedMsg:
		if msg.Kind == articles.KindPost {
			if m.reader.OpenPost(msg.Slug) {
				m.currentView = ViewBlogDetail
			}
			return m, nil
		}
		if m.reader.OpenGuide(msg.Slug) {
			m.currentView = ViewArticleDetail
		}
		return m, nil

	case articles.BackMsg:
		if msg.Kind == articles.KindPost {
			m.reader.Close()
			m.currentView = ViewBlogList
			return m, nil
		}
		m.goMain()
		return m, nil

	case articles.HomeMsg:
		m.goMain()
		return m, nil

	case helpview.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case history.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case historyLoadedMsg:
		m.historyView.SetEntries(msg.entries, msg.err)
		if msg.err != nil {
			m.log.Warnw("loading mailbox history failed", "error", msg.err)
		}
		return m, nil

	case settings.DoneMsg:
		m.currentView = m.previousView
		return m, nil

	case settings.APIKeySavedMsg:
		if m.onAPIKey != nil {
			m.onAPIKey(msg.Key)
		}
		m.log.Infow("fallback API key updated", "configured", msg.Key != "")
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case confirm.ResultMsg:
		m.currentView = m.previousView
		if msg.ID == confirmDeleteID && msg.OK {
			return m, m.startDelete()
		}
		return m, nil
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleInboxUpdate applies a synchronizer result.
func (m Model) handleInboxUpdate(msg appsync.InboxUpdatedMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.sync.WaitForNextResult()}

	if msg.Cleared {
		cmds = append(cmds, m.inbox.SetMessages(msg.Address, nil))
		if m.detail.Loading() {
			m.notice = ""
		}
		if m.currentView == ViewEmailDetail {
			m.goMain()
		} else {
			m.detail.Reset()
		}
		cmds = append(cmds, m.addressChanged(msg.Address)...)
	}

	if msg.Updated && m.gate.Store().IsCurrent(msg.Generation) {
		cmds = append(cmds, m.inbox.SetMessages(msg.Address, msg.Messages))
		if msg.Address != m.address {
			cmds = append(cmds, m.addressChanged(msg.Address)...)
		}
		if msg.NewCount > 0 {
			m.notice = fmt.Sprintf("%d new %s", msg.NewCount, plural(msg.NewCount, "message", "messages"))
		}
	}

	return m, tea.Batch(cmds...)
}

// addressChanged updates the local history and loads the read markers
// for the new active address.
func (m *Model) addressChanged(address string) []tea.Cmd {
	prev := m.address
	m.address = address
	return []tea.Cmd{
		m.recordMailboxChange(prev),
		m.loadReadIDs(address),
	}
}

// handleKey routes key presses: global keys first, then the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.sync.Stop()
		return m, tea.Quit
	}
	if m.capturesInput() {
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.openOverlay(ViewHelp)
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.openOverlay(ViewCommand)
		return m, m.commandView.Focus()
	}

	switch m.currentView {
	case ViewMain:
		return m.handleMainKey(msg)
	case ViewBlogList:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Home) {
			m.goMain()
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// handleMainKey handles the mailbox actions available on the main view.
func (m Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.sync.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		return m, m.sync.Refresh()

	case key.Matches(msg, m.keys.NewMailbox):
		return m, m.startProvisioning()

	case key.Matches(msg, m.keys.Delete):
		return m, m.confirmDelete()

	case key.Matches(msg, m.keys.CopyAddr):
		return m, m.copyCurrentAddress()

	case key.Matches(msg, m.keys.Blog):
		m.currentView = ViewBlogList
		return m, nil

	case key.Matches(msg, m.keys.SwitchFocus):
		m.setGuidesFocus(!m.guidesFocused)
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.openOverlay(ViewSettings)
		m.settingsView = m.settingsView.Open()
		return m, m.settingsView.Init()
	}

	var cmd tea.Cmd
	if m.guidesFocused {
		m.guides, cmd = m.guides.Update(msg)
	} else {
		m.inbox, cmd = m.inbox.Update(msg)
	}
	return m, cmd
}

// capturesInput reports whether the active view needs raw key input.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewCommand, ViewConfirm:
		return true
	case ViewSettings:
		return m.settingsView.Mode() != settings.ModeOverview
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewMain:
		if m.guidesFocused {
			m.guides, cmd = m.guides.Update(msg)
		} else {
			m.inbox, cmd = m.inbox.Update(msg)
		}
	case ViewEmailDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewArticleDetail, ViewBlogDetail:
		m.reader, cmd = m.reader.Update(msg)
	case ViewBlogList:
		m.blog, cmd = m.blog.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	case ViewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	}

	return m, cmd
}

// openOverlay remembers the view to return to and switches to v.
func (m *Model) openOverlay(v ViewState) {
	if m.currentView < ViewHelp {
		m.previousView = m.currentView
	}
	m.currentView = v
}

// goMain clears every detail selection and shows the main view.
func (m *Model) goMain() {
	m.detail.Reset()
	m.reader.Close()
	m.currentView = ViewMain
}

func (m *Model) setGuidesFocus(on bool) {
	m.guidesFocused = on
	m.guides.Focus(on)
	m.inbox.Focus(!on)
}

// startProvisioning requests a new mailbox unless one is already being
// created or deleted.
func (m *Model) startProvisioning() tea.Cmd {
	if m.provisioning || m.deleting {
		return nil
	}
	m.provisioning = true
	m.loadingIdx = 0
	return tea.Batch(m.provision(false), m.spinner.Tick, loadingTick())
}

// confirmDelete opens the delete confirmation when the active mailbox
// can be deleted.
func (m *Model) confirmDelete() tea.Cmd {
	if m.deleting || m.provisioning || !m.gate.CanDelete() {
		return nil
	}
	snap, _ := m.gate.Store().Snapshot()
	m.confirmView = confirm.New(
		confirmDeleteID,
		"Delete this mailbox?",
		snap.Session.Address+" and its messages are removed at the provider. A new mailbox is created right away.",
		"Yes, delete",
		m.layout.ContentWidth(),
		m.layout.ContentHeight(),
	)
	m.openOverlay(ViewConfirm)
	return m.confirmView.Init()
}

func (m *Model) startDelete() tea.Cmd {
	if m.deleting || m.provisioning || !m.gate.CanDelete() {
		return nil
	}
	m.deleting = true
	return tea.Batch(m.deleteMailbox(), m.spinner.Tick)
}

func (m *Model) copyCurrentAddress() tea.Cmd {
	snap, ok := m.gate.Store().Snapshot()
	if !ok {
		return nil
	}
	return m.copyAddress(snap.Session.Address)
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh":
		return m.sync.Refresh()
	case "new":
		return m.startProvisioning()
	case "delete":
		return m.confirmDelete()
	case "copy":
		return m.copyCurrentAddress()
	case "blog":
		m.detail.Reset()
		m.reader.Close()
		m.currentView = ViewBlogList
		return nil
	case "guides":
		m.goMain()
		m.setGuidesFocus(true)
		return nil
	case "settings":
		m.openOverlay(ViewSettings)
		m.settingsView = m.settingsView.Open()
		return nil
	case "help":
		m.openOverlay(ViewHelp)
		return nil
	case "history":
		m.openOverlay(ViewHistory)
		m.historyView.StartLoading()
		return m.loadHistory()
	case "quit":
		m.sync.Stop()
		return tea.Quit
	default:
		m.notice = "Unknown command: " + cmd
		return nil
	}
}

func (m *Model) resize() {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	left, right := m.layout.SplitWidths()
	m.inbox.SetSize(left, h)
	m.guides.SetSize(right, h)
	m.blog.SetSize(w, h)
	m.reader.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.settingsView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.historyView.SetSize(w, h)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.headerStatus())
	content := m.renderContent()

	var bar string
	if msg := m.gate.LastError(); msg != "" {
		bar = m.layout.RenderErrorBar(msg)
	} else {
		bar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, content, bar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewMain:
		return lipgloss.JoinHorizontal(lipgloss.Top, m.inbox.View(), m.guides.View())
	case ViewEmailDetail:
		return m.detail.View()
	case ViewArticleDetail, ViewBlogDetail:
		return m.reader.View()
	case ViewBlogList:
		return m.blog.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirm:
		return m.confirmView.View()
	case ViewHistory:
		return m.historyView.View()
	default:
		return ""
	}
}

// headerTitle shows the active address and provider, or the provisioning
// progress.
func (m Model) headerTitle() string {
	if m.provisioning {
		return "tempinbox " + m.spinner.View() + " " + loadingMessages[m.loadingIdx]
	}
	if m.deleting {
		return "tempinbox " + m.spinner.View() + " Deleting mailbox..."
	}

	snap, ok := m.gate.Store().Snapshot()
	if !ok {
		return "tempinbox"
	}
	return "tempinbox  " +
		theme.AddressStyle.Render(snap.Session.Address) +
		theme.ProviderLabelStyle(snap.Session.ProviderID).Render(string(snap.Session.ProviderID))
}

// headerStatus returns the unread count and the sync state.
func (m Model) headerStatus() string {
	var parts []string
	if n := m.inbox.UnreadCount(); n > 0 {
		parts = append(parts, theme.UnreadStyle.Render(fmt.Sprintf("%d new", n)))
	}

	st := m.sync.Status()
	switch {
	case !st.Active:
		parts = append(parts, "no mailbox")
	case st.State == appsync.Polling:
		parts = append(parts, theme.SyncStyle(true).Render("syncing"))
	case !st.LastSync.IsZero():
		parts = append(parts, theme.SyncStyle(false).Render("synced "+st.LastSync.Format("15:04:05")))
	default:
		parts = append(parts, "waiting")
	}
	return strings.Join(parts, " · ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewHistory:
		return "esc back | j/k scroll"
	case ViewCommand:
		return "enter execute | tab complete | esc cancel"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	case ViewSettings:
		if m.settingsView.Mode() != settings.ModeOverview {
			return "enter submit | esc cancel"
		}
		return "k set key | x remove key | p toggle resume | esc back"
	case ViewEmailDetail:
		return "esc back | j/k scroll"
	case ViewArticleDetail:
		return "esc back | h home | j/k scroll"
	case ViewBlogDetail:
		return "esc blog | h home | j/k scroll"
	case ViewBlogList:
		return "enter read | esc back"
	default:
		if m.notice != "" {
			return m.notice
		}
		hints := "q quit | ? help | r refresh | n new | c copy | tab guides | b blog | s settings"
		if m.gate.CanDelete() {
			hints += " | d delete"
		}
		return hints
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
