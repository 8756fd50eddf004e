package store

import (
	"context"
	"time"

	"github.com/nhle/tempinbox/internal/model"
)

// Store defines the local bookkeeping kept for mailboxes used on this
// machine: which mailboxes existed and which of their messages have been
// seen or read. Message content is never stored.
type Store interface {
	// === Mailboxes ===

	RecordMailbox(ctx context.Context, rec model.MailboxRecord) error
	RetireMailbox(ctx context.Context, address string, at time.Time) error
	GetMailboxes(ctx context.Context, includeRetired bool) ([]model.MailboxRecord, error)
	PurgeRetired(ctx context.Context, before time.Time) (int64, error)

	// === Seen / read markers ===

	// MarkSeen records ids for address and returns the ones not seen before.
	MarkSeen(ctx context.Context, address string, ids []string) ([]string, error)
	MarkRead(ctx context.Context, address, messageID string) error
	ReadIDs(ctx context.Context, address string) (map[string]bool, error)
	GetSeen(ctx context.Context, address string) ([]model.SeenMessage, error)

	Close() error
}
