// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
)

// LineRecognizer adapts a newline-delimited transcript stream to the
// Recognizer interface. Each line is one finalized utterance; lines
// ending in "..." are treated as interim updates. It is the bridge to
// an external speech-to-text process writing into a pipe or FIFO.
type LineRecognizer struct {
	mu     sync.Mutex
	open   func() (io.ReadCloser, error)
	closer io.ReadCloser
}

// NewLineRecognizer creates a recognizer that opens the transcript
// source anew for each session.
func NewLineRecognizer(open func() (io.ReadCloser, error)) *LineRecognizer {
	return &LineRecognizer{open: open}
}

// NewFIFORecognizer creates a recognizer reading from a named pipe.
func NewFIFORecognizer(path string) *LineRecognizer {
	return NewLineRecognizer(func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// Start opens the source and begins delivering events.
func (r *LineRecognizer) Start() (<-chan Event, error) {
	src, err := r.open()
	if err != nil {
		if os.IsPermission(err) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}

	r.mu.Lock()
	r.closer = src
	r.mu.Unlock()

	events := make(chan Event, 16)
	go r.readLoop(src, events)
	return events, nil
}

// Stop closes the active source, which unblocks the read loop.
func (r *LineRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer != nil {
		r.closer.Close()
		r.closer = nil
	}
}

func (r *LineRecognizer) readLoop(src io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer src.Close()

	events <- Event{Kind: EventStart}

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutSuffix(line, "..."); ok {
			events <- Event{Kind: EventInterim, Text: strings.TrimSpace(rest)}
			continue
		}
		events <- Event{Kind: EventFinal, Text: line}
	}

	events <- Event{Kind: EventEnd}
}
