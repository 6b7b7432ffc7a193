// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one conversation session: it routes user
// input to the right backend operation for the active mode, applies
// responses to the transcript, and persists completed exchanges.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/persist"
	"github.com/nyaysahayak/sahayak-tui/internal/stream"
	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// Mode selects how user input is interpreted.
type Mode string

const (
	// ModeChat streams free-form legal Q&A.
	ModeChat Mode = "chat"

	// ModeReport runs the guided FIR interview.
	ModeReport Mode = "report"

	// ModeDraft answers document-drafting questions in one shot.
	ModeDraft Mode = "draft"
)

// ErrBusy is returned when a send arrives while a stream is in flight.
var ErrBusy = errors.New("chat: a response is already streaming")

// voicePlaceholder is shown while a voice note is transcribed remotely.
const voicePlaceholder = "🎤 Processing voice note..."

// voiceFailedNotice replaces the placeholder when transcription fails.
const voiceFailedNotice = "(voice note could not be processed)"

// Gateway is the backend surface the session drives. *gateway.Client
// satisfies it; tests substitute doubles.
type Gateway interface {
	Ask(ctx context.Context, question string, profile gateway.ProfileContext) *gateway.AskResponse
	StreamChat(ctx context.Context, message, history string) (io.ReadCloser, error)
	FileReportInterview(ctx context.Context, userInput, history string) *gateway.ReportResponse
	VoiceMessage(ctx context.Context, audio io.Reader, filename, history string) (*gateway.VoiceResponse, error)
}

// Session is one live conversation.
type Session struct {
	mu             sync.Mutex
	gw             Gateway
	transcript     *transcript.Transcript
	bridge         *persist.Bridge
	profile        gateway.ProfileContext
	mode           Mode
	streaming      bool
	reportComplete bool
}

// NewSession creates a session in chat mode. bridge may be nil when
// persistence is disabled.
func NewSession(gw Gateway, bridge *persist.Bridge, profile gateway.ProfileContext) *Session {
	return &Session{
		gw:         gw,
		transcript: transcript.New(),
		bridge:     bridge,
		profile:    profile,
		mode:       ModeChat,
	}
}

// Transcript exposes the session's message log.
func (s *Session) Transcript() *transcript.Transcript {
	return s.transcript
}

// Mode returns the active input mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches modes. The transcript belongs to one conversation,
// so switching clears it and begins a fresh persistence session.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	if s.mode == m {
		s.mu.Unlock()
		return
	}
	s.mode = m
	s.reportComplete = false
	s.mu.Unlock()

	s.Clear()
}

// ReportComplete reports whether the FIR interview reached its summary.
func (s *Session) ReportComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportComplete
}

// Busy reports whether a streamed response is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Clear empties the transcript and rotates the persistence session.
// Any in-flight stream keeps running but can no longer touch the
// transcript; its handle went stale with the clear.
func (s *Session) Clear() {
	s.transcript.Clear()
	if s.bridge != nil {
		s.bridge.NewSession()
	}
	s.mu.Lock()
	s.reportComplete = false
	s.mu.Unlock()
}

// Send routes one user utterance through the active mode. The user
// message is appended optimistically before any network activity.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	switch s.Mode() {
	case ModeReport:
		return s.sendReport(ctx, text)
	case ModeDraft:
		return s.sendAsk(ctx, text)
	default:
		return s.sendStream(ctx, text)
	}
}

// sendStream drives the streaming chat path. At most one stream runs at
// a time.
func (s *Session) sendStream(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrBusy
	}
	s.streaming = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	history := s.transcript.History()
	s.transcript.AddUserMessage(text)
	handle := s.transcript.AddPlaceholder()
	asm := stream.NewAssembler(handle)

	body, err := s.gw.StreamChat(ctx, text, history)
	if err != nil {
		// Degrade to the connection-lost notice in place.
		notice := asm.Notice
		if notice == "" {
			notice = stream.ConnectionLostNotice
		}
		handle.SetText(notice)
		return err
	}
	defer body.Close()

	if _, err := asm.Run(ctx, body); err != nil {
		return err
	}

	// A stream that finished after a clear no longer owns the live
	// placeholder; persisting would capture the next conversation
	// mid-exchange.
	if handle.Valid() {
		s.persist(ctx)
	}
	return nil
}

// sendAsk drives the single-shot Q&A path. The gateway degrades
// failures to a sentinel answer, so the exchange always completes.
func (s *Session) sendAsk(ctx context.Context, text string) error {
	s.transcript.AddUserMessage(text)
	resp := s.gw.Ask(ctx, text, s.profile)
	s.transcript.AddAIMessage(resp.Answer)

	if resp.Status != gateway.StatusError {
		s.persist(ctx)
	}
	return nil
}

// sendReport advances the FIR interview one turn and detects the
// completion marker.
func (s *Session) sendReport(ctx context.Context, text string) error {
	history := s.transcript.History()
	s.transcript.AddUserMessage(text)

	resp := s.gw.FileReportInterview(ctx, text, history)
	answer := resp.Answer
	if resp.Completed() {
		answer = strings.TrimSpace(strings.ReplaceAll(answer, "REPORT_COLLECTED", ""))
		s.mu.Lock()
		s.reportComplete = true
		s.mu.Unlock()
	}
	s.transcript.AddAIMessage(answer)

	if resp.Status != gateway.StatusError {
		s.persist(ctx)
	}
	return nil
}

// SendVoiceNote uploads recorded audio. A user-side placeholder shows
// immediately and is resolved to the server transcription; the answer
// then lands as a normal AI message.
func (s *Session) SendVoiceNote(ctx context.Context, audio io.Reader, filename string) error {
	history := s.transcript.History()
	handle := s.transcript.AddUserPlaceholder(voicePlaceholder)

	resp, err := s.gw.VoiceMessage(ctx, audio, filename, history)
	if err != nil {
		handle.SetText(voiceFailedNotice)
		return err
	}

	// Resolve before appending the answer; the handle goes stale the
	// moment a newer message lands.
	if err := handle.SetText(resp.UserText); err != nil {
		// Transcript moved on (cleared or new input); drop the result.
		return nil
	}
	s.transcript.AddAIMessage(resp.Answer)

	s.persist(ctx)
	return nil
}

// HandleCommand applies a classified voice command to the session.
func (s *Session) HandleCommand(ctx context.Context, cmd voice.Command) error {
	switch cmd.Type {
	case voice.CommandClear:
		s.Clear()
		return nil
	case voice.CommandSend, voice.CommandQuery:
		return s.Send(ctx, cmd.Text)
	default:
		// CommandStop is handled by the pipeline itself.
		return nil
	}
}

// persist saves the transcript after a completed exchange; best-effort.
func (s *Session) persist(ctx context.Context) {
	if s.bridge == nil {
		return
	}
	s.bridge.Persist(ctx, s.transcript, string(s.Mode()))
}
