package state

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
  thread TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
  thread TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
  id TEXT PRIMARY KEY,
  participant TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_preferences_participant ON preferences(participant);

CREATE TABLE IF NOT EXISTS meetings (
  id TEXT PRIMARY KEY,
  thread TEXT,
  organizer TEXT NOT NULL,
  title TEXT NOT NULL,
  attendees TEXT,
  start_at TEXT NOT NULL,
  end_at TEXT NOT NULL,
  description TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_meetings_thread ON meetings(thread);

CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  stream TEXT NOT NULL,
  scope_type TEXT NOT NULL,
  scope_id TEXT NOT NULL,
  subject TEXT,
  body TEXT NOT NULL,
  metadata TEXT,
  payload TEXT,
  created_at TEXT NOT NULL,
  read_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_stream_scope_created ON events(stream, scope_type, scope_id, created_at);
`
