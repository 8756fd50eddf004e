package inbox

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
)

func summaries(ids ...string) []model.MessageSummary {
	out := make([]model.MessageSummary, len(ids))
	for i, id := range ids {
		out[i] = model.MessageSummary{ID: id, Subject: "subject " + id}
	}
	return out
}

func TestSetMessages_KeepsCursorOnSameMessage(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetMessages("a@x.test", summaries("1", "2", "3"))
	m.list.Select(1)
	require.Equal(t, "2", m.SelectedID())

	m.SetMessages("a@x.test", summaries("0", "1", "2", "3"))

	assert.Equal(t, "2", m.SelectedID())
	assert.Equal(t, 4, m.Len())
}

func TestReadState(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetMessages("a@x.test", summaries("1", "2", "3"))
	assert.Equal(t, 3, m.UnreadCount())

	m.SetRead(map[string]bool{"1": true})
	m.MarkRead("3")
	assert.Equal(t, 1, m.UnreadCount())

	// A different mailbox starts with nothing read.
	m.SetMessages("b@x.test", summaries("1"))
	assert.Equal(t, 1, m.UnreadCount())
	assert.Equal(t, "b@x.test", m.Address())
}

func TestUpdate_EnterSelects(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "nothing to open in an empty inbox")

	m.SetMessages("a@x.test", summaries("7"))
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedMessageMsg{ID: "7"}, cmd())
}

func TestView_EmptyStates(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No mailbox yet.")

	m.SetMessages("a@x.test", nil)
	assert.Contains(t, m.View(), "Waiting for incoming emails...")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"seconds", now.Add(-30 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relativeTime(tt.t, now))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel…", truncate("hello world", 4))
	assert.Equal(t, "a b", truncate("a \n  b", 10))
}
