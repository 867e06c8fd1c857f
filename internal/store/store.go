// Package store provides best-effort crash-recovery persistence for room
// metadata. Nothing in the mix tick or event dispatcher blocks on it: writes
// are queued and applied asynchronously by a single background worker.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// RoomSnapshot is the persisted shape of a Room, enough to reconstruct its
// identity and chat history after a restart.
type RoomSnapshot struct {
	ID          string
	DisplayName string
	AmbienceID  string
	Chat        []ChatRow
}

// ChatRow is a persisted chat message.
type ChatRow struct {
	Seq      int
	From     string
	Text     string
	TimeUnix int64
}

// Store persists room snapshots in SQLite.
type Store struct {
	db        *sql.DB
	sessionID string
	writes    chan func(context.Context) error
	closeCh   chan struct{}
	closeOnce sync.Once
}

// Open opens (or creates) the sqlite database, runs migrations, and starts
// the background writer goroutine. Pass an empty path to disable
// persistence entirely (Open still succeeds, all writes are no-ops).
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	st := &Store{
		// Correlation id for this store's log lines; the process may open
		// several stores over its lifetime in tests.
		sessionID: uuid.NewString(),
		writes:    make(chan func(context.Context) error, 64),
		closeCh:   make(chan struct{}),
	}
	if path == "" {
		slog.Info("room store disabled (no path configured)")
		close(st.closeCh)
		return st, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	st.db = db
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("room store opened", "path", path, "session", st.sessionID)

	go st.run()
	return st, nil
}

// Close drains pending writes and closes the database. Safe to call more
// than once (e.g. an explicit Close followed by a deferred one); only the
// first call does any work.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		close(s.writes)
		<-s.closeCh
		err = s.db.Close()
	})
	return err
}

func (s *Store) run() {
	defer close(s.closeCh)
	ctx := context.Background()
	for write := range s.writes {
		if err := write(ctx); err != nil {
			slog.Warn("room store write failed", "session", s.sessionID, "err", err)
		}
	}
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	ambience_id TEXT NOT NULL,
	updated_at_unix_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
	room_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	author TEXT NOT NULL,
	text TEXT NOT NULL,
	time_unix INTEGER NOT NULL,
	PRIMARY KEY (room_id, seq)
);
`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("run store migrations: %w", err)
	}
	return nil
}

// enqueue schedules a write on the background worker. If persistence is
// disabled (no db), this is a no-op.
func (s *Store) enqueue(write func(context.Context) error) {
	if s == nil || s.db == nil {
		return
	}
	select {
	case s.writes <- write:
	default:
		slog.Warn("room store write queue full, dropping update")
	}
}

// UpsertRoom queues a room metadata snapshot for persistence.
func (s *Store) UpsertRoom(id, displayName, ambienceID string) {
	s.enqueue(func(ctx context.Context) error {
		const q = `
INSERT INTO rooms (id, display_name, ambience_id, updated_at_unix_ms) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
	ambience_id = excluded.ambience_id, updated_at_unix_ms = excluded.updated_at_unix_ms
`
		_, err := s.db.ExecContext(ctx, q, id, displayName, ambienceID, time.Now().UnixMilli())
		return err
	})
}

// AppendChat queues a single chat message for persistence.
func (s *Store) AppendChat(roomID string, seq int, from, text string, when time.Time) {
	s.enqueue(func(ctx context.Context) error {
		const q = `INSERT OR REPLACE INTO chat_messages (room_id, seq, author, text, time_unix) VALUES (?, ?, ?, ?, ?)`
		_, err := s.db.ExecContext(ctx, q, roomID, seq, from, text, when.Unix())
		return err
	})
}

// LoadRooms reloads every persisted room snapshot, capped chat history
// included, for use at startup.
func (s *Store) LoadRooms(ctx context.Context, maxChatPerRoom int) ([]RoomSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name, ambience_id FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var snapshots []RoomSnapshot
	for rows.Next() {
		var snap RoomSnapshot
		if err := rows.Scan(&snap.ID, &snap.DisplayName, &snap.AmbienceID); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		snap.Chat, err = s.loadChat(ctx, snap.ID, maxChatPerRoom)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	slog.Info("room store reloaded", "rooms", len(snapshots))
	return snapshots, rows.Err()
}

func (s *Store) loadChat(ctx context.Context, roomID string, limit int) ([]ChatRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, author, text, time_unix FROM chat_messages WHERE room_id = ? ORDER BY seq DESC LIMIT ?`,
		roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	var chat []ChatRow
	for rows.Next() {
		var row ChatRow
		if err := rows.Scan(&row.Seq, &row.From, &row.Text, &row.TimeUnix); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chat = append(chat, row)
	}
	for i, j := 0, len(chat)-1; i < j; i, j = i+1, j-1 {
		chat[i], chat[j] = chat[j], chat[i]
	}
	return chat, rows.Err()
}
