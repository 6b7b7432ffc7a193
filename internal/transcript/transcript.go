// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript contains the data structures for the active conversation.
package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// TitleRunes is the maximum title length derived from the first user message.
const TitleRunes = 40

// ErrStaleHandle is returned when a mutation handle refers to a message
// that has been cleared or is no longer the last entry. Late stream or
// voice callbacks must never overwrite newer conversation state.
var ErrStaleHandle = errors.New("transcript: stale mutation handle")

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered, append-only message log for one conversation.
// The single sanctioned in-place mutation is replace-last, used while an
// AI reply streams in or a voice-note transcription resolves; it goes
// through a Handle carrying a generation check.
type Transcript struct {
	mu         sync.Mutex
	messages   []*Message
	generation uint64
	updatedAt  time.Time
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// =============================================================================
// APPEND OPERATIONS
// =============================================================================

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	t.updatedAt = time.Now()
}

// AddUserMessage creates and appends a user message.
func (t *Transcript) AddUserMessage(text string) *Message {
	msg := NewUserMessage(text)
	t.Append(msg)
	return msg
}

// AddAIMessage creates and appends an AI message.
func (t *Transcript) AddAIMessage(text string) *Message {
	msg := NewAIMessage(text)
	t.Append(msg)
	return msg
}

// AddPlaceholder appends an empty AI message and returns a handle that may
// replace its text for as long as it remains the last entry in the current
// generation. Exactly one placeholder exists per streaming invocation.
func (t *Transcript) AddPlaceholder() *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := NewAIMessage("")
	t.messages = append(t.messages, msg)
	t.updatedAt = time.Now()

	return &Handle{
		transcript: t,
		messageID:  msg.ID,
		generation: t.generation,
	}
}

// AddUserPlaceholder appends a user message with interim text and returns a
// handle for resolving it, used while a voice note is transcribed remotely.
func (t *Transcript) AddUserPlaceholder(text string) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := NewUserMessage(text)
	t.messages = append(t.messages, msg)
	t.updatedAt = time.Now()

	return &Handle{
		transcript: t,
		messageID:  msg.ID,
		generation: t.generation,
	}
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// IsEmpty returns true if there are no messages.
func (t *Transcript) IsEmpty() bool {
	return t.Len() == 0
}

// Last returns a copy of the most recent message, or nil if empty.
func (t *Transcript) Last() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return nil
	}
	cp := *t.messages[len(t.messages)-1]
	return &cp
}

// Snapshot returns a copy of all messages in insertion order.
func (t *Transcript) Snapshot() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Title derives a conversation title from the first user message.
func (t *Transcript) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.messages {
		if m.Sender == SenderUser && m.Text != "" {
			return m.Preview(TitleRunes)
		}
	}
	return "New Conversation"
}

// History renders the conversation as the plain-text history block the
// backend interview and voice endpoints expect.
func (t *Transcript) History() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	for _, m := range t.messages {
		switch m.Sender {
		case SenderUser:
			sb.WriteString("User: ")
		case SenderAI:
			sb.WriteString("AI: ")
		}
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// UpdatedAt returns the time of the last mutation.
func (t *Transcript) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// =============================================================================
// CLEAR
// =============================================================================

// Clear removes all messages and invalidates every outstanding handle.
// Called on mode switches, new conversations, and the voice clear command.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.generation++
	t.updatedAt = time.Now()
}

// =============================================================================
// MUTATION HANDLE
// =============================================================================

// Handle authorizes replace-last mutations on one placeholder message.
// It is invalidated by Clear and by any later append, so a delayed
// completion cannot corrupt a newer message.
type Handle struct {
	transcript *Transcript
	messageID  string
	generation uint64
}

// SetText replaces the placeholder's text. Returns ErrStaleHandle if the
// transcript was cleared or the placeholder is no longer the last message.
func (h *Handle) SetText(text string) error {
	t := h.transcript
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generation != h.generation || len(t.messages) == 0 {
		return ErrStaleHandle
	}
	last := t.messages[len(t.messages)-1]
	if last.ID != h.messageID {
		return ErrStaleHandle
	}

	last.Text = text
	t.updatedAt = time.Now()
	return nil
}

// Valid reports whether the handle still targets the live placeholder.
func (h *Handle) Valid() bool {
	t := h.transcript
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generation != h.generation || len(t.messages) == 0 {
		return false
	}
	return t.messages[len(t.messages)-1].ID == h.messageID
}

// MessageID returns the ID of the placeholder this handle targets.
func (h *Handle) MessageID() string {
	return h.messageID
}
