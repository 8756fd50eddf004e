package app

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/ui/detail"
	"github.com/nhle/tempinbox/internal/ui/history"
)

// loadingInterval is how long each provisioning message stays on screen.
const loadingInterval = 1200 * time.Millisecond

// loadingMessages rotate in the header while a mailbox is provisioned.
var loadingMessages = []string{
	"Scanning Secure Nodes...",
	"Bypassing Platform Filters...",
	"Initializing Temporary Inbox...",
	"Ready for Anonymous Reception...",
}

// provisionDoneMsg is sent when a NewMailbox call returns.
type provisionDoneMsg struct {
	session *model.MailboxSession
	err     error
}

// deleteDoneMsg is sent when a DeleteMailbox call returns.
type deleteDoneMsg struct {
	deleted bool
	err     error
}

// readIDsLoadedMsg carries the locally known read state of a mailbox.
type readIDsLoadedMsg struct {
	address string
	ids     map[string]bool
}

// copiedMsg reports the result of copying the address.
type copiedMsg struct {
	address string
	err     error
}

// historyLoadedMsg carries the local mailbox history.
type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}

// loadingTickMsg advances the provisioning message.
type loadingTickMsg struct{}

func loadingTick() tea.Cmd {
	return tea.Tick(loadingInterval, func(time.Time) tea.Msg {
		return loadingTickMsg{}
	})
}

// provision asks the gate for a new mailbox. Each provider request is
// bounded by its REST client, so the fallback still gets a full timeout
// after a slow primary.
func (m *Model) provision(silent bool) tea.Cmd {
	g := m.gate
	return func() tea.Msg {
		sess, err := g.NewMailbox(context.Background(), gate.ProvisionOptions{Silent: silent})
		return provisionDoneMsg{session: sess, err: err}
	}
}

// deleteMailbox deletes the active mailbox and provisions a replacement.
func (m *Model) deleteMailbox() tea.Cmd {
	g := m.gate
	return func() tea.Msg {
		deleted, err := g.DeleteMailbox(context.Background())
		return deleteDoneMsg{deleted: deleted, err: err}
	}
}

// fetchDetail loads one message through the gate. A failed or stale
// fetch yields a nil detail.
func (m *Model) fetchDetail(id string) tea.Cmd {
	g := m.gate
	return func() tea.Msg {
		d, ok := gate.Execute(context.Background(), g, gate.FetchDetail(id), gate.Options{})
		if !ok {
			return detail.DetailLoadedMsg{ID: id}
		}
		return detail.DetailLoadedMsg{ID: id, Detail: d}
	}
}

// markRead records a message as opened. Failures are only logged.
func (m *Model) markRead(address, id string) tea.Cmd {
	s := m.store
	if s == nil || address == "" {
		return nil
	}
	log := m.log
	return func() tea.Msg {
		if err := s.MarkRead(context.Background(), address, id); err != nil {
			log.Warnw("marking message read failed", "address", address, "id", id, "error", err)
		}
		return nil
	}
}

// loadReadIDs fetches the read message ids of address.
func (m *Model) loadReadIDs(address string) tea.Cmd {
	s := m.store
	if s == nil || address == "" {
		return nil
	}
	log := m.log
	return func() tea.Msg {
		ids, err := s.ReadIDs(context.Background(), address)
		if err != nil {
			log.Warnw("loading read state failed", "address", address, "error", err)
			return nil
		}
		return readIDsLoadedMsg{address: address, ids: ids}
	}
}

// recordMailboxChange retires the previous address and records the new
// active one in the local history.
func (m *Model) recordMailboxChange(prev string) tea.Cmd {
	s := m.store
	if s == nil {
		return nil
	}
	snap, ok := m.gate.Store().Snapshot()
	log := m.log
	return func() tea.Msg {
		ctx := context.Background()
		now := time.Now()
		if prev != "" && (!ok || prev != snap.Session.Address) {
			if err := s.RetireMailbox(ctx, prev, now); err != nil {
				log.Warnw("retiring mailbox failed", "address", prev, "error", err)
			}
		}
		if ok {
			rec := model.MailboxRecord{
				Address:    snap.Session.Address,
				ProviderID: snap.Session.ProviderID,
				CreatedAt:  snap.Session.CreatedAt,
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			if err := s.RecordMailbox(ctx, rec); err != nil {
				log.Warnw("recording mailbox failed", "address", rec.Address, "error", err)
			}
		}
		return nil
	}
}

// loadHistory reads every recorded mailbox with its seen and read counts.
func (m *Model) loadHistory() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if s == nil {
			return historyLoadedMsg{err: errors.New("mailbox history is not available")}
		}
		ctx := context.Background()
		boxes, err := s.GetMailboxes(ctx, true)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		entries := make([]history.Entry, 0, len(boxes))
		for _, b := range boxes {
			seen, err := s.GetSeen(ctx, b.Address)
			if err != nil {
				return historyLoadedMsg{err: err}
			}
			e := history.Entry{Record: b, Seen: len(seen)}
			for _, sm := range seen {
				if sm.ReadAt != nil {
					e.Read++
				}
			}
			entries = append(entries, e)
		}
		return historyLoadedMsg{entries: entries}
	}
}

// copyAddress writes address to the system clipboard.
func (m *Model) copyAddress(address string) tea.Cmd {
	write := m.clipboard
	return func() tea.Msg {
		return copiedMsg{address: address, err: write(address)}
	}
}

// defaultClipboard is the system clipboard.
func defaultClipboard(s string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not available")
	}
	return clipboard.WriteAll(s)
}
