package session

import (
	"errors"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/model"
)

func sample(addr string) model.MailboxSession {
	return model.MailboxSession{
		Address:      addr,
		AuthToken:    "tok",
		RefreshToken: "ref",
		AccountID:    "acc",
		ProviderID:   model.ProviderPrimary,
	}
}

func TestStore_SetBumpsGeneration(t *testing.T) {
	s := NewStore()
	_, ok := s.Snapshot()
	assert.False(t, ok)

	g1 := s.Set(sample("a@x.io"))
	g2 := s.Set(sample("b@x.io"))

	assert.Greater(t, g2, g1)
	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "b@x.io", snap.Session.Address)
	assert.Equal(t, g2, snap.Generation)
}

func TestStore_PatchCredentials(t *testing.T) {
	s := NewStore()
	gen := s.Set(sample("a@x.io"))

	snap, err := s.PatchCredentials(gen, "tok2", "ref2")
	require.NoError(t, err)
	assert.Equal(t, "tok2", snap.Session.AuthToken)
	assert.Equal(t, "ref2", snap.Session.RefreshToken)
	assert.Equal(t, "a@x.io", snap.Session.Address)
	assert.Equal(t, "acc", snap.Session.AccountID)
	assert.Equal(t, gen, snap.Generation)
}

func TestStore_PatchCredentials_Stale(t *testing.T) {
	s := NewStore()
	old := s.Set(sample("a@x.io"))
	s.Set(sample("b@x.io"))

	_, err := s.PatchCredentials(old, "tok2", "ref2")
	assert.ErrorIs(t, err, ErrStaleSession)

	snap, _ := s.Snapshot()
	assert.Equal(t, "tok", snap.Session.AuthToken)
	assert.Equal(t, "ref", snap.Session.RefreshToken)

	s.Clear()
	_, err = s.PatchCredentials(s.Generation(), "x", "y")
	assert.ErrorIs(t, err, ErrStaleSession)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	gen := s.Set(sample("a@x.io"))

	s.Clear()
	_, ok := s.Snapshot()
	assert.False(t, ok)
	assert.False(t, s.IsCurrent(gen))

	// Clearing again does not move the generation.
	after := s.Generation()
	s.Clear()
	assert.Equal(t, after, s.Generation())
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore()
	var kinds []ChangeKind
	s.OnChange(func(c Change) {
		// Reading the store from a listener must not deadlock.
		_, _ = s.Snapshot()
		kinds = append(kinds, c.Kind)
	})

	gen := s.Set(sample("a@x.io"))
	_, _ = s.PatchCredentials(gen, "t", "r")
	s.Clear()

	assert.Equal(t, []ChangeKind{ChangeSet, ChangePatched, ChangeCleared}, kinds)
}

func TestStore_ConcurrentPatchesAreAtomic(t *testing.T) {
	s := NewStore()
	gen := s.Set(sample("a@x.io"))

	var wg gosync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := string(rune('a' + i%26))
			_, _ = s.PatchCredentials(gen, tok, tok)
		}(i)
	}
	wg.Wait()

	snap, _ := s.Snapshot()
	assert.Equal(t, snap.Session.AuthToken, snap.Session.RefreshToken)
}

type memVault struct {
	saved   *model.MailboxSession
	deletes int
	loadErr error
}

func (v *memVault) Load() (*model.MailboxSession, error) { return v.saved, v.loadErr }
func (v *memVault) Save(s model.MailboxSession) error { v.saved = &s; return nil }
func (v *memVault) Delete() error { v.saved = nil; v.deletes++; return nil }

func TestPersistAndResume(t *testing.T) {
	vault := &memVault{}
	s := NewStore()
	Persist(s, vault, zap.NewNop().Sugar())

	gen := s.Set(sample("a@x.io"))
	_, _ = s.PatchCredentials(gen, "tok2", "ref2")
	require.NotNil(t, vault.saved)
	assert.Equal(t, "tok2", vault.saved.AuthToken)

	restored := NewStore()
	ok, err := Resume(restored, vault)
	require.NoError(t, err)
	assert.True(t, ok)
	snap, _ := restored.Snapshot()
	assert.Equal(t, "a@x.io", snap.Session.Address)

	s.Clear()
	assert.Nil(t, vault.saved)
	assert.Equal(t, 1, vault.deletes)

	ok, err = Resume(NewStore(), vault)
	require.NoError(t, err)
	assert.False(t, ok)

	vault.loadErr = errors.New("locked")
	_, err = Resume(NewStore(), vault)
	assert.Error(t, err)
}
