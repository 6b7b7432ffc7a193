// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRecognizer is a scriptable Recognizer test double. Each Start
// opens a fresh session channel; tests push events through emit.
type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []chan Event
	startErr error
	stops    int
}

func (f *fakeRecognizer) Start() (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan Event, 16)
	f.sessions = append(f.sessions, ch)
	return ch, nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecognizer) emit(ev Event) {
	f.mu.Lock()
	ch := f.sessions[len(f.sessions)-1]
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeRecognizer) endSession() {
	f.mu.Lock()
	ch := f.sessions[len(f.sessions)-1]
	f.mu.Unlock()
	ch <- Event{Kind: EventEnd}
	close(ch)
}

func (f *fakeRecognizer) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// expectCommand receives one command or fails.
func expectCommand(t *testing.T, p *Pipeline) Command {
	t.Helper()
	select {
	case cmd := <-p.Commands():
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
		return Command{}
	}
}

// expectNoCommand asserts nothing is dispatched within a short window.
func expectNoCommand(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case cmd := <-p.Commands():
		t.Fatalf("unexpected command %q %q", cmd.Type, cmd.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManualStartSkipsGating(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)

	if err := p.Start(true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != StateArmed {
		t.Errorf("State() = %v, want StateArmed", p.State())
	}

	rec.emit(Event{Kind: EventFinal, Text: "what is anticipatory bail"})
	cmd := expectCommand(t, p)
	if cmd.Type != CommandQuery {
		t.Errorf("Type = %q, want %q", cmd.Type, CommandQuery)
	}
	if cmd.Text != "what is anticipatory bail" {
		t.Errorf("Text = %q, want %q", cmd.Text, "what is anticipatory bail")
	}
}

func TestGatedDiscardsUntilWake(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(false)

	if p.State() != StateGated {
		t.Fatalf("State() = %v, want StateGated", p.State())
	}

	rec.emit(Event{Kind: EventFinal, Text: "background conversation noise"})
	expectNoCommand(t, p)
	if p.State() != StateGated {
		t.Errorf("State() = %v after discarded text, want StateGated", p.State())
	}

	rec.emit(Event{Kind: EventFinal, Text: "hey sahayak clear chat"})
	cmd := expectCommand(t, p)
	if cmd.Type != CommandClear {
		t.Errorf("Type = %q, want %q", cmd.Type, CommandClear)
	}

	// Continuous conversation: armed afterwards, not gated again.
	waitFor(t, "armed state", func() bool { return p.State() == StateArmed })
}

func TestBareWakeActivationWaitsForNextUtterance(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(false)

	rec.emit(Event{Kind: EventFinal, Text: "hey sahayak"})
	expectNoCommand(t, p)
	waitFor(t, "armed state", func() bool { return p.State() == StateArmed })
	if p.Interim() != listeningPrompt {
		t.Errorf("Interim() = %q, want %q", p.Interim(), listeningPrompt)
	}

	rec.emit(Event{Kind: EventFinal, Text: "how do I file an FIR"})
	cmd := expectCommand(t, p)
	if cmd.Type != CommandQuery || cmd.Text != "how do I file an FIR" {
		t.Errorf("cmd = %q %q, want query with full text", cmd.Type, cmd.Text)
	}
}

func TestStopCommandEndsSession(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	rec.emit(Event{Kind: EventFinal, Text: "stop listening"})
	cmd := expectCommand(t, p)
	if cmd.Type != CommandStop {
		t.Errorf("Type = %q, want %q", cmd.Type, CommandStop)
	}
	waitFor(t, "idle state", func() bool { return p.State() == StateIdle })

	rec.mu.Lock()
	stops := rec.stops
	rec.mu.Unlock()
	if stops == 0 {
		t.Error("recognizer Stop was never called")
	}
}

func TestStartIdempotent(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)

	p.Start(true)
	p.Start(true)
	p.Start(false)

	if got := rec.sessionCount(); got != 1 {
		t.Errorf("sessionCount = %d, want 1", got)
	}
}

func TestAutoRestartAfterSessionEnd(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	rec.endSession()
	waitFor(t, "restarted session", func() bool { return rec.sessionCount() == 2 })

	// The restarted session still dispatches.
	rec.emit(Event{Kind: EventFinal, Text: "what is a legal notice"})
	cmd := expectCommand(t, p)
	if cmd.Type != CommandQuery {
		t.Errorf("Type = %q, want %q", cmd.Type, CommandQuery)
	}
}

func TestPermissionDenialIsTerminal(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	rec.emit(Event{Kind: EventError, Err: ErrPermissionDenied})
	waitFor(t, "idle state", func() bool { return p.State() == StateIdle })
	if !errors.Is(p.Err(), ErrPermissionDenied) {
		t.Errorf("Err() = %v, want ErrPermissionDenied", p.Err())
	}

	rec.endSession()
	time.Sleep(50 * time.Millisecond)
	if got := rec.sessionCount(); got != 1 {
		t.Errorf("sessionCount = %d after permission denial, want 1 (no restart)", got)
	}
}

func TestTransientErrorsSwallowed(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	rec.emit(Event{Kind: EventError, Err: ErrNoSpeech})
	rec.emit(Event{Kind: EventError, Err: ErrAborted})
	rec.emit(Event{Kind: EventFinal, Text: "still working"})

	cmd := expectCommand(t, p)
	if cmd.Text != "still working" {
		t.Errorf("Text = %q, want %q", cmd.Text, "still working")
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v, want nil", p.Err())
	}
}

func TestStaleSessionEventsIgnoredAfterStop(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	p.Stop()
	if p.State() != StateIdle {
		t.Fatalf("State() = %v, want StateIdle", p.State())
	}

	// Events still in flight from the torn-down session must not
	// dispatch or mutate state.
	rec.emit(Event{Kind: EventInterim, Text: "ghost"})
	rec.emit(Event{Kind: EventFinal, Text: "ghost command"})
	expectNoCommand(t, p)
	if p.Interim() != "" {
		t.Errorf("Interim() = %q, want empty", p.Interim())
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %v, want StateIdle", p.State())
	}
}

func TestInterimUpdatesWithoutClassification(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)
	p.Start(true)

	rec.emit(Event{Kind: EventInterim, Text: "what is sec"})
	waitFor(t, "interim text", func() bool { return p.Interim() == "what is sec" })
	expectNoCommand(t, p)
}

func TestStartErrorSurfaces(t *testing.T) {
	rec := &fakeRecognizer{startErr: ErrPermissionDenied}
	p := NewPipeline(rec)

	if err := p.Start(true); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Start error = %v, want ErrPermissionDenied", err)
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %v, want StateIdle", p.State())
	}
}

func TestUnconsumedCommandsDoNotWedgePipeline(t *testing.T) {
	rec := &fakeRecognizer{}
	p := NewPipeline(rec)

	if err := p.Start(true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Overfill the command buffer with nobody reading. Every utterance
	// must settle back to armed rather than blocking in dispatch.
	for i := 0; i < cap(p.commands)+3; i++ {
		rec.emit(Event{Kind: EventFinal, Text: "what is bail"})
		waitFor(t, "pipeline to re-arm", func() bool {
			return p.State() == StateArmed
		})
	}

	// Stop must still take effect with the buffer full.
	rec.emit(Event{Kind: EventFinal, Text: "stop"})
	waitFor(t, "pipeline to go idle", func() bool {
		return p.State() == StateIdle
	})
}
