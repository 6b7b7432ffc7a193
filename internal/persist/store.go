// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist stores completed conversation exchanges in a local
// SQLite database, one record per user per calendar day (or per
// session, depending on the configured granularity).
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
)

// ErrChatNotFound is returned when no record exists for an ID.
var ErrChatNotFound = errors.New("chat not found")

// Record is one persisted conversation document.
type Record struct {
	ChatID    string
	UserID    string
	Title     string
	Mode      string
	Messages  []transcript.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatID derives the deterministic daily record key for a user. Two
// exchanges on the same calendar day map to the same ID, which is what
// makes same-day saves merge instead of multiplying records.
func ChatID(userID string, day time.Time) string {
	return "chat_" + userID + "_" + day.Format("2006-01-02")
}

// Store is a SQLite-backed conversation store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the chat database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		chat_id    TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		mode       TEXT NOT NULL,
		messages   TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, updated_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a conversation record. On conflict the message payload,
// mode, and updated_at are replaced while the original title and
// created_at are preserved, so the day's record keeps the name it got
// from its first exchange.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	now := time.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, user_id, title, mode, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			mode       = excluded.mode,
			messages   = excluded.messages,
			updated_at = excluded.updated_at`,
		rec.ChatID, rec.UserID, rec.Title, rec.Mode, string(payload),
		created.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// Load retrieves a record by chat ID.
func (s *Store) Load(ctx context.Context, chatID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, title, mode, messages, created_at, updated_at
		FROM chats WHERE chat_id = ?`, chatID)

	var rec Record
	var payload, created, updated string
	err := row.Scan(&rec.ChatID, &rec.UserID, &rec.Title, &rec.Mode, &payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &rec.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &rec, nil
}

// List returns a user's records, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, title, mode, messages, created_at, updated_at
		FROM chats WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		var payload, created, updated string
		if err := rows.Scan(&rec.ChatID, &rec.UserID, &rec.Title, &rec.Mode,
			&payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Messages); err != nil {
			continue // Skip corrupted rows
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Delete removes a record by chat ID.
func (s *Store) Delete(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}
