package articles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/content"
	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/theme"
)

// BackMsg is sent when the reader is closed with the back key. Kind tells
// the parent which list the article came from.
type BackMsg struct {
	Kind Kind
}

// HomeMsg is sent when the reader is closed with the home key.
type HomeMsg struct{}

// Reader shows one guide or blog post.
type Reader struct {
	catalog  *content.Catalog
	keys     *keys.KeyMap
	viewport viewport.Model
	kind     Kind
	slug     string
	width    int
	height   int
}

// NewReader creates an article reader over c.
func NewReader(c *content.Catalog, k *keys.KeyMap, width, height int) Reader {
	r := Reader{catalog: c, keys: k, viewport: viewport.New(1, 1)}
	r.SetSize(width, height)
	return r
}

// OpenGuide shows the guide with the given slug. It reports false when no
// such guide exists.
func (r *Reader) OpenGuide(slug string) bool {
	a, ok := r.catalog.Guide(slug)
	if !ok {
		return false
	}
	r.open(KindGuide, a, fmt.Sprintf("%s · %s", a.Author, a.Date))
	return true
}

// OpenPost shows the blog post with the given slug.
func (r *Reader) OpenPost(slug string) bool {
	p, ok := r.catalog.Post(slug)
	if !ok {
		return false
	}
	r.open(KindPost, p.Article, fmt.Sprintf("%s · %s · %s · %s read", p.Category, p.Author, p.Date, p.ReadTime))
	return true
}

func (r *Reader) open(kind Kind, a content.Article, meta string) {
	r.kind = kind
	r.slug = a.Slug

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(a.Title)
	metaLine := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(meta)
	sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(r.width-4, 80), 1)))
	body := lipgloss.NewStyle().Width(max(min(r.width-4, 100), 10)).
		Render(r.catalog.Render(a).String())

	r.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, title, metaLine, "", sep, "", body))
	r.viewport.GotoTop()
}

// Close clears the shown article.
func (r *Reader) Close() {
	r.slug = ""
	r.viewport.SetContent("")
}

// Slug returns the open article's slug, or "".
func (r Reader) Slug() string { return r.slug }

// Kind returns the kind of the open article.
func (r Reader) Kind() Kind { return r.kind }

// Update handles scrolling and the back and home keys.
func (r Reader) Update(msg tea.Msg) (Reader, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, r.keys.Back):
			kind := r.kind
			return r, func() tea.Msg { return BackMsg{Kind: kind} }
		case key.Matches(msg, r.keys.Home):
			return r, func() tea.Msg { return HomeMsg{} }
		}
	}

	var cmd tea.Cmd
	r.viewport, cmd = r.viewport.Update(msg)
	return r, cmd
}

// View renders the article.
func (r Reader) View() string {
	return theme.DetailPanelStyle.
		Width(max(r.width-2, 0)).
		Render(r.viewport.View())
}

// SetSize updates the reader dimensions.
func (r *Reader) SetSize(width, height int) {
	r.width = width
	r.height = height
	r.viewport.Width = max(width-6, 1)
	r.viewport.Height = max(height-4, 1)
	if r.slug == "" {
		return
	}
	if r.kind == KindPost {
		r.OpenPost(r.slug)
	} else {
		r.OpenGuide(r.slug)
	}
}
