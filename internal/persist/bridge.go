// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
)

// Granularity selects how conversations map onto stored records.
type Granularity string

const (
	// GranularityDaily conflates all of a user's exchanges on one
	// calendar day into a single record (a daily case log).
	GranularityDaily Granularity = "daily"

	// GranularitySession keeps one record per conversation session.
	GranularitySession Granularity = "session"
)

// Bridge saves completed exchanges on behalf of the active session.
// Persistence is best-effort: failures are logged and swallowed so a
// broken database never blocks or corrupts the live conversation.
type Bridge struct {
	store       *Store
	userID      string
	granularity Granularity

	// mu guards the rotating session fields: Persist runs on the send
	// goroutine while NewSession lands from the UI.
	mu        sync.Mutex
	sessionID string
	createdAt time.Time
}

// NewBridge creates a bridge for one user. An unrecognized granularity
// falls back to daily.
func NewBridge(store *Store, userID string, granularity Granularity) *Bridge {
	if granularity != GranularitySession {
		granularity = GranularityDaily
	}
	return &Bridge{
		store:       store,
		userID:      userID,
		granularity: granularity,
		sessionID:   uuid.NewString(),
	}
}

// NewSession rotates the session identifier. Only meaningful under
// session granularity, where the next save lands in a fresh record.
func (b *Bridge) NewSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = uuid.NewString()
	b.createdAt = time.Time{}
}

// ChatID returns the record key the next save will target.
func (b *Bridge) ChatID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatIDLocked()
}

func (b *Bridge) chatIDLocked() string {
	if b.granularity == GranularitySession {
		return "chat_" + b.userID + "_" + b.sessionID
	}
	return ChatID(b.userID, time.Now())
}

// Persist upserts the transcript after a completed exchange. Never
// returns an error; failures are logged only.
func (b *Bridge) Persist(ctx context.Context, t *transcript.Transcript, mode string) {
	if b.store == nil || t.IsEmpty() {
		return
	}

	b.mu.Lock()
	if b.createdAt.IsZero() {
		b.createdAt = time.Now().UTC()
	}
	chatID := b.chatIDLocked()
	created := b.createdAt
	b.mu.Unlock()

	rec := &Record{
		ChatID:    chatID,
		UserID:    b.userID,
		Title:     t.Title(),
		Mode:      mode,
		Messages:  t.Snapshot(),
		CreatedAt: created,
	}
	if err := b.store.Save(ctx, rec); err != nil {
		log.Printf("persist: failed to save chat %s: %v", rec.ChatID, err)
	}
}
