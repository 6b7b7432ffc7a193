// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream assembles streamed chat replies into transcript updates.
package stream

import "unicode/utf8"

// =============================================================================
// INCREMENTAL UTF-8 DECODER
// =============================================================================

// Decoder converts a byte stream to text incrementally. A network chunk
// may end in the middle of a multi-byte codepoint, so decode state must
// carry across calls: trailing bytes that form an incomplete sequence are
// held back and prepended to the next chunk.
type Decoder struct {
	pending []byte
}

// NewDecoder creates a decoder with empty carry-over state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write decodes the next chunk and returns the complete text it yields.
// Bytes belonging to a codepoint split across the chunk boundary are
// buffered until the rest arrives.
func (d *Decoder) Write(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}

	buf := chunk
	if len(d.pending) > 0 {
		buf = append(d.pending, chunk...)
		d.pending = nil
	}

	cut := len(buf) - incompleteTailLen(buf)
	if cut < len(buf) {
		d.pending = append([]byte(nil), buf[cut:]...)
	}
	return string(buf[:cut])
}

// Flush returns any bytes still held back. Called at end of stream, where
// a dangling partial sequence is emitted as-is rather than dropped.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := string(d.pending)
	d.pending = nil
	return out
}

// Pending returns the number of buffered bytes awaiting completion.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// incompleteTailLen reports how many trailing bytes of buf form the start
// of a UTF-8 sequence whose continuation bytes have not arrived yet.
func incompleteTailLen(buf []byte) int {
	n := len(buf)
	// A sequence is at most UTFMax bytes, so only the last few bytes can
	// belong to a split codepoint.
	start := n - utf8.UTFMax
	if start < 0 {
		start = 0
	}

	for i := n - 1; i >= start; i-- {
		b := buf[i]
		if b < utf8.RuneSelf {
			return 0 // ASCII terminates any possible partial sequence
		}
		if b&0xC0 == 0x80 {
			continue // continuation byte, keep scanning for the start
		}

		// Found a start byte at i; is the sequence complete?
		want := seqLen(b)
		have := n - i
		if want > 0 && have < want {
			return have
		}
		return 0
	}
	return 0
}

// seqLen returns the expected byte length for a UTF-8 start byte,
// or 0 if the byte cannot start a sequence.
func seqLen(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}
