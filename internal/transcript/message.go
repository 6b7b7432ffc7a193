// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript contains the data structures for the active conversation.
package transcript

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/nyaysahayak/sahayak-tui/internal/util"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "Sahayak"
	default:
		return string(s)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the conversation transcript.
// Messages are immutable once appended; the one exception is the most
// recent AI message, which grows in place while a reply streams in.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(sender Sender, text string) *Message {
	return &Message{
		ID:        generateID(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) *Message {
	return NewMessage(SenderUser, text)
}

// NewAIMessage creates a new AI message.
func NewAIMessage(text string) *Message {
	return NewMessage(SenderAI, text)
}

// IsEmpty returns true if the message has no text.
func (m *Message) IsEmpty() bool {
	return len(m.Text) == 0
}

// Preview returns a flattened, truncated preview of the message text.
func (m *Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.Flatten(m.Text), maxRunes)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
