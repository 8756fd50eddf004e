// Package session holds the single active mailbox session. Every
// replacement bumps a generation counter so that results computed for an
// older session can be recognized and dropped.
package session

import (
	"errors"
	gosync "sync"

	"github.com/nhle/tempinbox/internal/model"
)

// ErrStaleSession is returned when a credential patch targets a session
// that has since been replaced or cleared.
var ErrStaleSession = errors.New("session was replaced")

// Snapshot is an immutable copy of the session together with the
// generation it belongs to.
type Snapshot struct {
	Session    model.MailboxSession
	Generation uint64
}

// ChangeKind describes what happened to the session.
type ChangeKind int

const (
	// ChangeSet means a new session replaced the previous one.
	ChangeSet ChangeKind = iota

	// ChangePatched means the credentials of the current session rotated.
	ChangePatched

	// ChangeCleared means the session was removed.
	ChangeCleared
)

// Change is delivered to OnChange listeners after every transition.
type Change struct {
	Kind     ChangeKind
	Snapshot Snapshot

	// Present is false after ChangeCleared.
	Present bool
}

// Vault persists the session across restarts.
type Vault interface {
	Load() (*model.MailboxSession, error)
	Save(model.MailboxSession) error
	Delete() error
}

// Store holds zero or one session.
type Store struct {
	mu         gosync.Mutex
	current    *model.MailboxSession
	generation uint64
	listeners  []func(Change)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers fn to be called after every transition. Listeners
// run on the goroutine that made the change, outside the store lock.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Set replaces the session wholesale and returns the new generation.
func (s *Store) Set(sess model.MailboxSession) uint64 {
	s.mu.Lock()
	s.generation++
	cp := sess
	s.current = &cp
	change := Change{
		Kind:     ChangeSet,
		Snapshot: Snapshot{Session: cp, Generation: s.generation},
		Present:  true,
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
	return change.Snapshot.Generation
}

// PatchCredentials rotates both tokens of the session at generation gen.
// The address, account id and provider are preserved. Nothing is changed
// when gen is no longer current.
func (s *Store) PatchCredentials(gen uint64, authToken, refreshToken string) (Snapshot, error) {
	s.mu.Lock()
	if s.current == nil || s.generation != gen {
		s.mu.Unlock()
		return Snapshot{}, ErrStaleSession
	}
	s.current.AuthToken = authToken
	s.current.RefreshToken = refreshToken
	snap := Snapshot{Session: *s.current, Generation: s.generation}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, Change{Kind: ChangePatched, Snapshot: snap, Present: true})
	return snap, nil
}

// Clear removes the session. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.generation++
	change := Change{
		Kind:     ChangeCleared,
		Snapshot: Snapshot{Generation: s.generation},
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, change)
}

// Snapshot returns a copy of the current session, if any.
func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{Generation: s.generation}, false
	}
	return Snapshot{Session: *s.current, Generation: s.generation}, true
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// IsCurrent reports whether gen is still the live generation.
func (s *Store) IsCurrent(gen uint64) bool {
	return s.Generation() == gen
}

func (s *Store) snapshotListeners() []func(Change) {
	out := make([]func(Change), len(s.listeners))
	copy(out, s.listeners)
	return out
}

func notify(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}
