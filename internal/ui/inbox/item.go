package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/theme"
)

// MessageItem wraps a model.MessageSummary so it can be used in a bubbles/list.
type MessageItem struct {
	Message model.MessageSummary
	Read    bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Message.Subject + " " + i.Message.From.Display()
}

// Title returns the subject line for the list.
func (i MessageItem) Title() string {
	if i.Message.Subject == "" {
		return "(no subject)"
	}
	return i.Message.Subject
}

// Description returns the sender and preview.
func (i MessageItem) Description() string {
	parts := []string{i.Message.From.Display()}
	if i.Message.Intro != "" {
		parts = append(parts, i.Message.Intro)
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering inbox rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws one message: a marker, sender, subject and age on the first
// line and the preview on the second.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}
	isSelected := index == m.Index()

	marker := " "
	if !mi.Read {
		marker = theme.UnreadStyle.Render("●")
	}

	from := lipgloss.NewStyle().Bold(!mi.Read).Render(truncate(mi.Message.From.Display(), 28))
	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(mi.Message.CreatedAt, d.clock()))

	first := fmt.Sprintf("%s %s  %s  %s", marker, from, mi.Title(), age)
	second := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render("  " + truncate(mi.Message.Intro, max(m.Width()-8, 10)))

	line := first + "\n" + second
	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func (d ItemDelegate) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
