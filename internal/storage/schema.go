package storage

// schema is applied idempotently on every Open. AUTOINCREMENT on events.
// stream_seq gives us the single, gap-free, monotonic sequence allocator
// spec §4.1 requires without a hand-rolled counter table: SQLite never
// reuses an AUTOINCREMENT value even after deletes.
//
// Cascade deletes (spec §4.1 "cascade deletes") ride on ON DELETE CASCADE
// throughout, which requires PRAGMA foreign_keys=ON to be set on every
// connection (see Open).
const schema = `
CREATE TABLE IF NOT EXISTS llm_configs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	content_hash TEXT NOT NULL UNIQUE,
	provider     TEXT NOT NULL,
	model        TEXT NOT NULL,
	params_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	internal_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id            TEXT NOT NULL UNIQUE,
	name                 TEXT NOT NULL DEFAULT '',
	cwd                  TEXT,
	parent_internal_id   INTEGER REFERENCES sessions(internal_id) ON DELETE CASCADE,
	fork_point_msg_idx   INTEGER,
	fork_point_prog_id   TEXT,
	fork_origin          TEXT NOT NULL DEFAULT '',
	fork_instructions    TEXT NOT NULL DEFAULT '',
	llm_config_id        INTEGER REFERENCES llm_configs(id),
	mode                 TEXT NOT NULL DEFAULT 'build',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions(parent_internal_id);

CREATE TABLE IF NOT EXISTS messages (
	internal_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id            TEXT NOT NULL UNIQUE,
	session_internal_id  INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	role                 TEXT NOT NULL,
	created_at           INTEGER NOT NULL,
	parent_message_id    TEXT,
	seq                  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_internal_id, seq);

-- tool_calls indexes every ToolUse part by (session, call_id) so tool-result
-- parts can carry a real foreign key back to the call they answer, per the
-- "tool-result -> tool-use" FK requirement in spec §4.1.
CREATE TABLE IF NOT EXISTS tool_calls (
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	call_id             TEXT NOT NULL,
	message_internal_id INTEGER NOT NULL REFERENCES messages(internal_id) ON DELETE CASCADE,
	tool_name           TEXT NOT NULL,
	PRIMARY KEY (session_internal_id, call_id)
);

CREATE TABLE IF NOT EXISTS message_parts (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	message_internal_id  INTEGER NOT NULL REFERENCES messages(internal_id) ON DELETE CASCADE,
	session_internal_id  INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	seq                  INTEGER NOT NULL,
	kind                 TEXT NOT NULL,
	call_id              TEXT,
	compacted            INTEGER NOT NULL DEFAULT 0,
	payload_json         TEXT NOT NULL,
	FOREIGN KEY (session_internal_id, call_id)
		REFERENCES tool_calls(session_internal_id, call_id)
		DEFERRABLE INITIALLY DEFERRED
);

CREATE INDEX IF NOT EXISTS idx_parts_message ON message_parts(message_internal_id, seq);
CREATE INDEX IF NOT EXISTS idx_parts_callid ON message_parts(session_internal_id, call_id);

CREATE TABLE IF NOT EXISTS events (
	stream_seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id            TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	timestamp           INTEGER NOT NULL,
	origin              TEXT NOT NULL,
	source_node         TEXT NOT NULL DEFAULT '',
	kind                TEXT NOT NULL,
	payload_json        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_internal_id, stream_seq);

CREATE TABLE IF NOT EXISTS tasks (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	title               TEXT NOT NULL,
	status              TEXT NOT NULL,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS intent_snapshots (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	summary             TEXT NOT NULL,
	created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	question            TEXT NOT NULL,
	choice              TEXT NOT NULL,
	rationale           TEXT NOT NULL,
	created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS progress (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	task_internal_id    INTEGER REFERENCES tasks(internal_id) ON DELETE CASCADE,
	note                TEXT NOT NULL,
	created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	name                TEXT NOT NULL,
	media_type          TEXT NOT NULL,
	location            TEXT NOT NULL,
	created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS delegations (
	internal_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id           TEXT NOT NULL UNIQUE,
	session_internal_id INTEGER NOT NULL REFERENCES sessions(internal_id) ON DELETE CASCADE,
	child_session_id    TEXT NOT NULL,
	instructions        TEXT NOT NULL,
	created_at          INTEGER NOT NULL
);
`
