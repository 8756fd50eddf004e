package detail

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempinbox/internal/keys"
	"github.com/nhle/tempinbox/internal/model"
)

func TestLoadingThenLoaded(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.StartLoading("a")
	assert.Contains(t, m.View(), "Loading message...")

	// A late result for another message is ignored.
	m, _ = m.Update(DetailLoadedMsg{ID: "b", Detail: &model.MessageDetail{}})
	assert.True(t, m.Loading())

	m, _ = m.Update(DetailLoadedMsg{ID: "a", Detail: &model.MessageDetail{
		MessageSummary: model.MessageSummary{
			ID:      "a",
			Subject: "Welcome",
			From:    model.Sender{Name: "Team", Address: "team@example.com"},
		},
		Text: "Hello there",
	}})

	require.False(t, m.Loading())
	view := m.View()
	assert.Contains(t, view, "Welcome")
	assert.Contains(t, view, "Team <team@example.com>")
	assert.Contains(t, view, "Hello there")
}

func TestMissingMessage(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.StartLoading("a")
	m, _ = m.Update(DetailLoadedMsg{ID: "a"})

	assert.True(t, m.Missing())
	assert.Contains(t, m.View(), "This message is no longer available.")
}

func TestBackAndReset(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.StartLoading("a")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())

	m.Reset()
	assert.Empty(t, m.CurrentID())
	assert.Contains(t, m.View(), "No message selected")
}
