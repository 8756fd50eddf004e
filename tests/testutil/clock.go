package testutil

import (
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/tempinbox/internal/clock"
)

// ManualScheduler is a clock.Scheduler whose time only moves when Advance
// is called. Due callbacks run synchronously on the advancing goroutine.
type ManualScheduler struct {
	mu      gosync.Mutex
	now     time.Duration
	nextID  int
	pending map[int]*scheduled
}

type scheduled struct {
	id  int
	at  time.Duration
	fn  func()
	ch  chan time.Time
	due bool
}

var _ clock.Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler returns a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[int]*scheduled)}
}

// AfterFunc implements clock.Scheduler.
func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) clock.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.pending[id] = &scheduled{id: id, at: m.now + d, fn: f}
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.pending[id]; !ok {
			return false
		}
		delete(m.pending, id)
		return true
	}
}

// After implements clock.Scheduler.
func (m *ManualScheduler) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ch := make(chan time.Time, 1)
	m.pending[m.nextID] = &scheduled{id: m.nextID, at: m.now + d, ch: ch}
	return ch
}

// Advance moves time forward by d and fires everything that became due,
// in deadline order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now
	var due []*scheduled
	for id, s := range m.pending {
		if s.at <= now {
			due = append(due, s)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].id < due[j].id
		}
		return due[i].at < due[j].at
	})
	for _, s := range due {
		if s.fn != nil {
			s.fn()
		}
		if s.ch != nil {
			s.ch <- time.Unix(0, 0).Add(s.at)
		}
	}
}

// Pending returns the number of callbacks and channels not yet fired.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
