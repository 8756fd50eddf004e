package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tempinbox/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// dsn adds the per-connection pragmas to dbPath.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)"
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordMailbox inserts a mailbox, or refreshes its provider and clears
// its retirement if it already exists.
func (s *SQLiteStore) RecordMailbox(ctx context.Context, rec model.MailboxRecord) error {
	if rec.Address == "" {
		return errors.New("mailbox address cannot be empty")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	const query = `
		INSERT INTO mailboxes (address, provider_id, created_at, retired_at)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(address) DO UPDATE SET
			provider_id = excluded.provider_id,
			retired_at  = NULL`

	if _, err := s.db.ExecContext(ctx, query,
		rec.Address, string(rec.ProviderID), createdAt.UTC(),
	); err != nil {
		return fmt.Errorf("recording mailbox %s: %w", rec.Address, err)
	}
	return nil
}

// RetireMailbox marks a mailbox as no longer active. Unknown addresses
// are ignored.
func (s *SQLiteStore) RetireMailbox(ctx context.Context, address string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mailboxes SET retired_at = ? WHERE address = ? AND retired_at IS NULL",
		at.UTC(), address,
	)
	if err != nil {
		return fmt.Errorf("retiring mailbox %s: %w", address, err)
	}
	return nil
}

// GetMailboxes lists known mailboxes, newest first.
func (s *SQLiteStore) GetMailboxes(ctx context.Context, includeRetired bool) ([]model.MailboxRecord, error) {
	query := "SELECT address, provider_id, created_at, retired_at FROM mailboxes"
	if !includeRetired {
		query += " WHERE retired_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	var out []model.MailboxRecord
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("querying mailboxes: %w", err)
	}
	return out, nil
}

// PurgeRetired deletes mailboxes retired before the cutoff together with
// their seen markers.
func (s *SQLiteStore) PurgeRetired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM mailboxes WHERE retired_at IS NOT NULL AND retired_at < ?",
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging retired mailboxes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged mailboxes: %w", err)
	}
	return n, nil
}

// MarkSeen records message ids for address and returns those that were
// not recorded before, in input order.
func (s *SQLiteStore) MarkSeen(ctx context.Context, address string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO mailboxes (address, created_at) VALUES (?, ?)",
		address, now,
	); err != nil {
		return nil, fmt.Errorf("ensuring mailbox %s: %w", address, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO seen_messages (id, address, message_id, first_seen_at)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing seen statement: %w", err)
	}
	defer stmt.Close()

	var fresh []string
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, uuid.NewString(), address, id, now)
		if err != nil {
			return nil, fmt.Errorf("marking %s seen: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			fresh = append(fresh, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing seen markers: %w", err)
	}
	return fresh, nil
}

// MarkRead sets the read time of a seen message, recording it first if
// needed.
func (s *SQLiteStore) MarkRead(ctx context.Context, address, messageID string) error {
	if _, err := s.MarkSeen(ctx, address, []string{messageID}); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE seen_messages SET read_at = ?
		WHERE address = ? AND message_id = ? AND read_at IS NULL`,
		s.now().UTC(), address, messageID,
	)
	if err != nil {
		return fmt.Errorf("marking %s read: %w", messageID, err)
	}
	return nil
}

// ReadIDs returns the ids of read messages for address.
func (s *SQLiteStore) ReadIDs(ctx context.Context, address string) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT message_id FROM seen_messages WHERE address = ? AND read_at IS NOT NULL",
		address,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying read messages: %w", err)
	}

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[strings.TrimSpace(id)] = true
	}
	return out, nil
}

// GetSeen returns the seen markers of a mailbox, oldest first.
func (s *SQLiteStore) GetSeen(ctx context.Context, address string) ([]model.SeenMessage, error) {
	var out []model.SeenMessage
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, address, message_id, first_seen_at, read_at
		FROM seen_messages WHERE address = ?
		ORDER BY first_seen_at, message_id`, address)
	if err != nil {
		return nil, fmt.Errorf("querying seen messages: %w", err)
	}
	return out, nil
}
