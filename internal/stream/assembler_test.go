// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
)

// chunkReader delivers fixed chunks one Read at a time, optionally
// failing after the chunks are exhausted.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func textChunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

// =============================================================================
// ASSEMBLER TESTS
// =============================================================================

func TestAssemblerInOrderConcatenation(t *testing.T) {
	tr := transcript.New()
	tr.AddUserMessage("What is bail?")
	a := NewAssembler(tr.AddPlaceholder())

	full, err := a.Run(context.Background(), &chunkReader{
		chunks: textChunks("Bail ", "is ", "release..."),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if full != "Bail is release..." {
		t.Errorf("assembled = %q, want %q", full, "Bail is release...")
	}
	if got := tr.Last().Text; got != "Bail is release..." {
		t.Errorf("transcript last = %q, want %q", got, "Bail is release...")
	}
	if tr.Len() != 2 {
		t.Errorf("Len = %d, want 2 (one placeholder per stream)", tr.Len())
	}
}

func TestAssemblerSplitMultiByte(t *testing.T) {
	tr := transcript.New()
	a := NewAssembler(tr.AddPlaceholder())

	// "ज़मानत" with chunk boundaries inside codepoints.
	raw := []byte("ज़मानत matlab bail")
	var chunks [][]byte
	for i := 0; i < len(raw); i += 2 {
		end := i + 2
		if end > len(raw) {
			end = len(raw)
		}
		chunks = append(chunks, raw[i:end])
	}

	full, err := a.Run(context.Background(), &chunkReader{chunks: chunks})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if full != string(raw) {
		t.Errorf("assembled = %q, want %q", full, string(raw))
	}
}

func TestAssemblerMonotonicGrowth(t *testing.T) {
	tr := transcript.New()
	h := tr.AddPlaceholder()
	a := NewAssembler(h)

	r := &chunkReader{chunks: textChunks("one ", "two ", "three")}
	prevLen := -1

	// Drive the read loop manually by observing intermediate transcript
	// states through a wrapping reader.
	buf := make([]byte, 4)
	dec := a.decoder
	var acc strings.Builder
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc.WriteString(dec.Write(buf[:n]))
			if err := h.SetText(acc.String()); err != nil {
				t.Fatalf("SetText failed: %v", err)
			}
			cur := len(tr.Last().Text)
			if cur < prevLen {
				t.Fatalf("text shrank from %d to %d mid-stream", prevLen, cur)
			}
			prevLen = cur
		}
		if err != nil {
			break
		}
	}
	if got := tr.Last().Text; got != "one two three" {
		t.Errorf("final = %q, want %q", got, "one two three")
	}
}

func TestAssemblerMidStreamError(t *testing.T) {
	tr := transcript.New()
	tr.AddUserMessage("query")
	a := NewAssembler(tr.AddPlaceholder())

	cause := errors.New("connection reset")
	_, err := a.Run(context.Background(), &chunkReader{
		chunks: textChunks("partial ans"),
		err:    cause,
	})

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *stream.Error", err)
	}
	if se.Partial != "partial ans" {
		t.Errorf("Partial = %q, want %q", se.Partial, "partial ans")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be wrapped")
	}

	// The placeholder is replaced, not appended to.
	if got := tr.Last().Text; got != ConnectionLostNotice {
		t.Errorf("last text = %q, want connection-lost notice", got)
	}
}

func TestAssemblerStaleAfterClear(t *testing.T) {
	tr := transcript.New()
	h := tr.AddPlaceholder()
	a := NewAssembler(h)

	// Simulate the user clearing the chat while the stream is in flight.
	tr.Clear()

	full, err := a.Run(context.Background(), &chunkReader{
		chunks: textChunks("late ", "reply"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if full != "late reply" {
		t.Errorf("assembled = %q, want %q", full, "late reply")
	}
	// The cleared transcript must stay empty.
	if tr.Len() != 0 {
		t.Errorf("Len after clear = %d, want 0", tr.Len())
	}
}

func TestAssemblerContextCancel(t *testing.T) {
	tr := transcript.New()
	a := NewAssembler(tr.AddPlaceholder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, &chunkReader{chunks: textChunks("never")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
