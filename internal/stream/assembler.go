// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
)

// readBufferSize is the per-read buffer for pulling stream chunks.
const readBufferSize = 4096

// ConnectionLostNotice replaces the AI reply when a stream dies mid-read.
// There is no automatic retry; the user resends.
const ConnectionLostNotice = "Connection Lost. Is the backend running?"

// =============================================================================
// STREAM ERROR
// =============================================================================

// Error is a mid-stream failure that preserves the partial reply
// received before the connection dropped.
type Error struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler consumes a reply byte stream and republishes the growing text
// into the transcript's placeholder message, one chunk at a time and
// strictly in arrival order. The accumulated text only grows until the
// terminal state; an error replaces it with ConnectionLostNotice.
type Assembler struct {
	handle  *transcript.Handle
	decoder *Decoder
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulated strings.Builder

	// Notice overrides ConnectionLostNotice when non-empty.
	Notice string
}

// NewAssembler creates an assembler bound to one placeholder handle.
// Callers create exactly one placeholder (and one assembler) per stream
// invocation.
func NewAssembler(handle *transcript.Handle) *Assembler {
	return &Assembler{
		handle:  handle,
		decoder: NewDecoder(),
	}
}

// Run pulls the stream to completion, pushing each decoded increment into
// the transcript. It returns the full assembled text. On a mid-stream
// read failure the placeholder is replaced with the connection-lost
// notice and a *Error carrying the partial text is returned.
func (a *Assembler) Run(ctx context.Context, body io.Reader) (string, error) {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return a.fail(ctx.Err())
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			if text := a.decoder.Write(buf[:n]); text != "" {
				a.accumulated.WriteString(text)
				a.publish()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.finish()
			}
			return a.fail(err)
		}
	}
}

// finish flushes any held-back bytes and publishes the final text.
func (a *Assembler) finish() (string, error) {
	if tail := a.decoder.Flush(); tail != "" {
		a.accumulated.WriteString(tail)
	}
	a.publish()
	return a.accumulated.String(), nil
}

// fail replaces the placeholder text with the error notice and terminates.
func (a *Assembler) fail(cause error) (string, error) {
	notice := a.Notice
	if notice == "" {
		notice = ConnectionLostNotice
	}
	// A stale handle means the conversation moved on; leave it alone.
	_ = a.handle.SetText(notice)

	return a.accumulated.String(), &Error{
		Partial: a.accumulated.String(),
		Err:     cause,
	}
}

// publish pushes the current accumulated text into the placeholder.
// A stale handle (cleared transcript) silently stops updates; the read
// loop still drains so the caller sees the stream's natural end.
func (a *Assembler) publish() {
	_ = a.handle.SetText(a.accumulated.String())
}

// Text returns the text assembled so far.
func (a *Assembler) Text() string {
	return a.accumulated.String()
}
