package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
)

// SQLiteSessionStore implements crew.SessionStore with one JSON snapshot
// per row.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
// Closing the store closes the database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// Save inserts or replaces the snapshot.
func (s *SQLiteSessionStore) Save(ctx context.Context, snap crew.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", snap.ID, err)
	}
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO crew_sessions (id, snapshot, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		snap.ID, string(data), formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", snap.ID, err)
	}
	return nil
}

// Load returns the snapshot stored under id.
func (s *SQLiteSessionStore) Load(ctx context.Context, id string) (crew.Snapshot, error) {
	var data string
	err := s.db.sql.QueryRowContext(ctx, `SELECT snapshot FROM crew_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return crew.Snapshot{}, &domain.NotFoundError{Kind: "session", Key: id}
	}
	if err != nil {
		return crew.Snapshot{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	return decodeSnapshot(id, data)
}

// Delete removes the session. Deleting an unknown id is not an error.
func (s *SQLiteSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM crew_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// List returns every stored snapshot, most recently updated first.
func (s *SQLiteSessionStore) List(ctx context.Context) ([]crew.Snapshot, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT id, snapshot FROM crew_sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []crew.Snapshot
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		snap, err := decodeSnapshot(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func decodeSnapshot(id, data string) (crew.Snapshot, error) {
	var snap crew.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return crew.Snapshot{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return snap, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
