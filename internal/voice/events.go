// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice implements the wake-word voice command pipeline.
//
// A Recognizer abstracts the platform speech-to-text session; the
// Pipeline drives it as a state machine: passively gated behind a wake
// phrase, armed for continuous conversation once woken (or when started
// manually), and classifying finalized utterances into a small command
// grammar.
package voice

import "errors"

// Recognizer error sentinels. Recognizers translate their platform
// error codes into these so the pipeline can apply its restart policy.
var (
	// ErrPermissionDenied means microphone access was refused. Terminal:
	// the pipeline surfaces it and does not restart the session.
	ErrPermissionDenied = errors.New("voice: microphone permission denied")

	// ErrNoSpeech means a recognition window elapsed without speech.
	// Swallowed in continuous mode.
	ErrNoSpeech = errors.New("voice: no speech detected")

	// ErrAborted means the session was cancelled by an explicit stop.
	ErrAborted = errors.New("voice: recognition aborted")
)

// EventKind identifies a recognizer event.
type EventKind int

const (
	// EventStart signals the underlying session began capturing audio.
	EventStart EventKind = iota

	// EventInterim carries a partial transcript for live display only.
	// Interim text is never classified.
	EventInterim

	// EventFinal carries a finalized utterance ready for classification.
	EventFinal

	// EventError carries a recognition error. The session may continue
	// after transient errors.
	EventError

	// EventEnd signals the underlying session terminated. The pipeline
	// decides whether to restart.
	EventEnd
)

// Event is one occurrence in a recognition session.
type Event struct {
	Kind EventKind
	Text string // interim or final transcript
	Err  error  // set for EventError
}

// Recognizer is a platform speech-to-text session factory. Start opens
// a continuous recognition session and returns its event stream; the
// channel is closed after EventEnd is delivered. Stop tears down the
// active session; it is safe to call when no session is running.
//
// Implementations deliver events for one session in order: EventStart,
// then interleaved interim/final/error events, then EventEnd.
type Recognizer interface {
	Start() (<-chan Event, error)
	Stop()
}
