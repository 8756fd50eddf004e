package credential

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/session"
)

func newTestStore() *Store {
	return New(keyring.NewArrayKeyring(nil))
}

func TestStore_APIKey(t *testing.T) {
	s := newTestStore()

	key, err := s.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key, "missing item reads as empty")

	require.NoError(t, s.SetAPIKey("secret"))
	key, err = s.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "secret", key)

	require.NoError(t, s.SetAPIKey(""))
	key, err = s.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)

	assert.NoError(t, s.Delete(APIKeyItem), "deleting a missing item is fine")
}

func TestSessionVault_RoundTrip(t *testing.T) {
	v := newTestStore().Vault()

	got, err := v.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := model.MailboxSession{
		Address:      "me@mail.test",
		AuthToken:    "tok",
		RefreshToken: "ref",
		AccountID:    "acc",
		ProviderID:   model.ProviderPrimary,
		Password:     "pw",
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, v.Save(sess))

	got, err = v.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess, *got)

	require.NoError(t, v.Delete())
	got, err = v.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionVault_CorruptItem(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Set(SessionItem, "{not json"))

	_, err := s.Vault().Load()
	assert.Error(t, err)
}

func TestSessionVault_MirrorsSessionStore(t *testing.T) {
	v := newTestStore().Vault()
	st := session.NewStore()
	session.Persist(st, v, nil)

	st.Set(model.MailboxSession{Address: "a@mail.test", AuthToken: "t1", ProviderID: model.ProviderPrimary})
	saved, err := v.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "a@mail.test", saved.Address)

	snap, _ := st.Snapshot()
	_, err = st.PatchCredentials(snap.Generation, "t2", "r2")
	require.NoError(t, err)
	saved, err = v.Load()
	require.NoError(t, err)
	assert.Equal(t, "t2", saved.AuthToken)

	st.Clear()
	saved, err = v.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)

	restored := session.NewStore()
	ok, err := session.Resume(restored, v)
	require.NoError(t, err)
	assert.False(t, ok)
}
