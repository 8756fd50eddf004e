// Package articles renders the content hub: guide and blog lists and the
// article reader.
package articles

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/content"
	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/theme"
)

// Kind distinguishes guides from blog posts.
type Kind int

const (
	KindGuide Kind = iota
	KindPost
)

// SelectedMsg is sent when the user opens an entry.
type SelectedMsg struct {
	Kind Kind
	Slug string
}

// Entry is one row of an article list.
type Entry struct {
	Kind    Kind
	Slug    string
	Heading string
	Summary string
	Meta    string
}

func (e Entry) FilterValue() string { return e.Heading }
func (e Entry) Title() string       { return e.Heading }
func (e Entry) Description() string { return e.Summary }

// GuideEntries lists the catalog's guides.
func GuideEntries(c *content.Catalog) []Entry {
	guides := c.Guides()
	out := make([]Entry, 0, len(guides))
	for _, g := range guides {
		out = append(out, Entry{
			Kind:    KindGuide,
			Slug:    g.Slug,
			Heading: g.Title,
			Summary: g.Description,
			Meta:    g.Date,
		})
	}
	return out
}

// PostEntries lists the catalog's blog posts.
func PostEntries(c *content.Catalog) []Entry {
	posts := c.Posts()
	out := make([]Entry, 0, len(posts))
	for _, p := range posts {
		out = append(out, Entry{
			Kind:    KindPost,
			Slug:    p.Slug,
			Heading: p.Title,
			Summary: p.Description,
			Meta:    fmt.Sprintf("%s · %s · %s read", p.Category, p.Date, p.ReadTime),
		})
	}
	return out
}

type entryDelegate struct{}

func (d entryDelegate) Height() int                             { return 2 }
func (d entryDelegate) Spacing() int                            { return 1 }
func (d entryDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d entryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	e, ok := item.(Entry)
	if !ok {
		return
	}

	width := max(m.Width()-4, 10)
	second := e.Meta
	if second == "" {
		second = e.Summary
	}
	line := clip(e.Heading, width) + "\n" +
		lipgloss.NewStyle().Foreground(theme.ColorGray).Render(clip(second, width))

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

// ListModel is a selectable list of guides or posts.
type ListModel struct {
	list    list.Model
	keys    *keys.KeyMap
	focused bool
	border  bool
	width   int
	height  int
}

// NewList creates a list titled title. When bordered is set the list is
// drawn as a side panel with a focus border.
func NewList(title string, entries []Entry, k *keys.KeyMap, bordered bool, width, height int) ListModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = e
	}

	l := list.New(items, entryDelegate{}, width, max(height-2, 1))
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	m := ListModel{list: l, keys: k, border: bordered}
	m.SetSize(width, height)
	return m
}

// Update handles navigation and selection.
func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		e, ok := m.list.SelectedItem().(Entry)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{Kind: e.Kind, Slug: e.Slug}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list.
func (m ListModel) View() string {
	if !m.border {
		return m.list.View()
	}
	style := theme.BorderStyle
	if m.focused {
		style = theme.FocusedBorderStyle
	}
	return style.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(m.list.View())
}

// Focus sets whether the panel shows as focused.
func (m *ListModel) Focus(focused bool) { m.focused = focused }

// SelectedSlug returns the slug under the cursor.
func (m ListModel) SelectedSlug() string {
	if e, ok := m.list.SelectedItem().(Entry); ok {
		return e.Slug
	}
	return ""
}

// SetSize updates the list dimensions.
func (m *ListModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.border {
		m.list.SetSize(max(width-2, 1), max(height-2, 1))
		return
	}
	m.list.SetSize(width, height)
}
