// Package credential keeps secrets in the OS keyring: the fallback
// provider's API key and the persisted mailbox session.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/tempinbox/internal/model"
)

const (
	serviceName = "tempinbox"

	// APIKeyItem is the keyring item holding the RapidAPI key.
	APIKeyItem = "rapidapi-key"

	// SessionItem is the keyring item holding the serialized session.
	SessionItem = "session"
)

// Store reads and writes tempinbox secrets.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring. The encrypted file
// backend under dir is used where no native keyring exists.
func Open(dir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("tempinbox-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an existing keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key. A missing item yields "", nil.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "tempinbox " + key,
		Description: "tempinbox credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key. Deleting a missing item is not an
// error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// APIKey returns the stored RapidAPI key, or "" when none is stored.
func (s *Store) APIKey() (string, error) {
	return s.Get(APIKeyItem)
}

// SetAPIKey stores the RapidAPI key. An empty key removes it.
func (s *Store) SetAPIKey(key string) error {
	if key == "" {
		return s.Delete(APIKeyItem)
	}
	return s.Set(APIKeyItem, key)
}

// SessionVault persists a mailbox session as JSON in the keyring.
type SessionVault struct {
	store *Store
}

// Vault returns a session vault backed by s.
func (s *Store) Vault() *SessionVault {
	return &SessionVault{store: s}
}

// Load returns the persisted session, or nil when none is stored.
func (v *SessionVault) Load() (*model.MailboxSession, error) {
	raw, err := v.store.Get(SessionItem)
	if err != nil || raw == "" {
		return nil, err
	}

	var sess model.MailboxSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decoding stored session: %w", err)
	}
	return &sess, nil
}

// Save replaces the persisted session.
func (v *SessionVault) Save(sess model.MailboxSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return v.store.Set(SessionItem, string(raw))
}

// Delete removes the persisted session.
func (v *SessionVault) Delete() error {
	return v.store.Delete(SessionItem)
}
