package storage

// CurrentSchemaVersion is the schema version this build of the code
// expects. Bump it and append a Migration when the DDL below changes.
const CurrentSchemaVersion = 1

// baseSchema creates every table at CurrentSchemaVersion 1, grounded on
// original_source/infra/database.py's _create_schema(). It runs inside the
// same transaction that records the initial schema_version row.
const baseSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	version    INTEGER NOT NULL,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	meta       TEXT
);

CREATE TABLE IF NOT EXISTS turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	turn_id         TEXT NOT NULL,
	role            TEXT NOT NULL CHECK (role IN ('user','assistant')),
	content         TEXT NOT NULL,
	timestamp       TEXT NOT NULL,
	meta            TEXT
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation_id ON turns(conversation_id);
CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp);

CREATE TABLE IF NOT EXISTS memories (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	key        TEXT NOT NULL UNIQUE,
	value      TEXT NOT NULL,
	embedding  BLOB,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_key ON memories(key);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id    TEXT UNIQUE,
	name           TEXT NOT NULL,
	action         TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('pending','active','paused','completed','cancelled','failed')),
	scheduled_time TEXT NOT NULL,
	trigger_json   TEXT,
	max_runs       INTEGER,
	run_count      INTEGER NOT NULL DEFAULT 0,
	last_run       TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_external_id ON tasks(external_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id    TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	target     TEXT,
	details    TEXT,
	prev_hash  TEXT NOT NULL,
	entry_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_turn_id ON audit_log(turn_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
`
