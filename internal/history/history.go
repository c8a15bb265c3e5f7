// Package history provides SQLite-based persistence for chat messages.
// Read failures are logged and degrade to empty results: losing a message
// to transient storage trouble is preferable to crashing the conversation.
package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/telence/telence-go/internal/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER,
	user_id INTEGER,
	username TEXT,
	message TEXT,
	timestamp TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id_timestamp ON messages (chat_id, timestamp);`

var log = logger.With("history")

// Store owns the SQLite handle for message history. It is constructed once
// at startup and passed to whoever needs it; there is no package-level state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("history DB initialized", "path", path)
	return &Store{db: db}, nil
}

// Insert stores one message. Failures are logged and swallowed.
func (s *Store) Insert(ctx context.Context, m Message) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, user_id, username, message, timestamp) VALUES (?,?,?,?,?);`,
		m.ChatID, m.UserID, m.Username, m.Text, m.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		log.Error("failed to store message", "chat_id", m.ChatID, "error", err)
	}
}

// Recent returns the last limit messages of a chat in chronological order
// (oldest first). On query failure it returns an empty slice.
func (s *Store) Recent(ctx context.Context, chatID int64, limit int) []Message {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_id, username, message, timestamp FROM messages
		 WHERE chat_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?;`, chatID, limit)
	if err != nil {
		log.Error("failed to query messages", "chat_id", chatID, "error", err)
		return nil
	}
	defer rows.Close()
	newest := scanMessages(rows)

	// The query walks newest-first so LIMIT keeps the right end of history;
	// callers always consume oldest-first.
	out := make([]Message, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		out = append(out, newest[i])
	}
	return out
}

// RecentSince returns all messages of a chat at or after since, oldest first.
// On query failure it returns an empty slice.
func (s *Store) RecentSince(ctx context.Context, chatID int64, since time.Time) []Message {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_id, username, message, timestamp FROM messages
		 WHERE chat_id = ? AND timestamp >= ? ORDER BY timestamp ASC, id ASC;`,
		chatID, since.UTC().Format(time.RFC3339))
	if err != nil {
		log.Error("failed to query messages since", "chat_id", chatID, "error", err)
		return nil
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DeleteAll removes every message of a chat (the /reset operation).
func (s *Store) DeleteAll(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?;`, chatID)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) []Message {
	var out []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Username, &m.Text, &ts); err != nil {
			log.Error("failed to scan message row", "error", err)
			continue
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			log.Warn("skipping message with bad timestamp", "timestamp", ts, "error", err)
			continue
		}
		m.Timestamp = t
		out = append(out, m)
	}
	return out
}
