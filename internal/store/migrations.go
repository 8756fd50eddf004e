package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mailboxes (
	address     TEXT PRIMARY KEY,
	provider_id TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	retired_at  DATETIME
);

CREATE TABLE IF NOT EXISTS seen_messages (
	id            TEXT PRIMARY KEY,
	address       TEXT NOT NULL REFERENCES mailboxes(address) ON DELETE CASCADE,
	message_id    TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL,
	read_at       DATETIME,
	UNIQUE(address, message_id)
);

CREATE INDEX IF NOT EXISTS idx_seen_messages_address ON seen_messages(address);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_mailboxes_retired_at ON mailboxes(retired_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
