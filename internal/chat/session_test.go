// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/persist"
	"github.com/nyaysahayak/sahayak-tui/internal/stream"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// fakeGateway is a scriptable Gateway test double.
type fakeGateway struct {
	mu            sync.Mutex
	askAnswer     string
	reportAnswer  string
	voiceResp     *gateway.VoiceResponse
	voiceErr      error
	streamChunks  []string
	streamErr     error
	streamStarted chan struct{} // closed when StreamChat is called, if set
	streamRelease chan struct{} // blocks the stream body until closed, if set
}

func (f *fakeGateway) Ask(ctx context.Context, question string, profile gateway.ProfileContext) *gateway.AskResponse {
	return &gateway.AskResponse{Answer: f.askAnswer, Status: "success"}
}

func (f *fakeGateway) StreamChat(ctx context.Context, message, history string) (io.ReadCloser, error) {
	if f.streamStarted != nil {
		close(f.streamStarted)
		f.streamStarted = nil
	}
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &scriptedBody{chunks: f.streamChunks, release: f.streamRelease}, nil
}

func (f *fakeGateway) FileReportInterview(ctx context.Context, userInput, history string) *gateway.ReportResponse {
	return &gateway.ReportResponse{Answer: f.reportAnswer, Status: "success"}
}

func (f *fakeGateway) VoiceMessage(ctx context.Context, audio io.Reader, filename, history string) (*gateway.VoiceResponse, error) {
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return f.voiceResp, nil
}

// scriptedBody replays chunks, optionally blocking until released.
type scriptedBody struct {
	chunks  []string
	i       int
	release chan struct{}
}

func (b *scriptedBody) Read(p []byte) (int, error) {
	if b.release != nil {
		<-b.release
	}
	if b.i >= len(b.chunks) {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[b.i])
	b.i++
	return n, nil
}

func (b *scriptedBody) Close() error { return nil }

// waitForLen polls until the transcript holds n messages.
func waitForLen(t *testing.T, s *Session, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Transcript().Len() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for transcript length %d", n)
}

func newTestSession(t *testing.T, gw Gateway) (*Session, *persist.Store) {
	t.Helper()
	store, err := persist.Open(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("persist.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	bridge := persist.NewBridge(store, "u1", persist.GranularityDaily)
	return NewSession(gw, bridge, gateway.ProfileContext{Name: "Asha"}), store
}

func TestSendStreamsAndPersists(t *testing.T) {
	gw := &fakeGateway{streamChunks: []string{"Bail is ", "temporary ", "release."}}
	s, store := newTestSession(t, gw)

	if err := s.Send(context.Background(), "what is bail"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := s.Transcript().Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Text != "what is bail" {
		t.Errorf("user text = %q", msgs[0].Text)
	}
	if msgs[1].Text != "Bail is temporary release." {
		t.Errorf("ai text = %q", msgs[1].Text)
	}

	recs, err := store.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1 (stream completion must persist)", len(recs))
	}
}

func TestSendStreamFailureShowsNotice(t *testing.T) {
	gw := &fakeGateway{streamErr: &gateway.Error{Kind: gateway.KindNetwork, Err: errors.New("refused")}}
	s, store := newTestSession(t, gw)

	if err := s.Send(context.Background(), "hello"); err == nil {
		t.Fatal("Send returned nil, want error")
	}

	msgs := s.Transcript().Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[1].Text != stream.ConnectionLostNotice {
		t.Errorf("ai text = %q, want %q", msgs[1].Text, stream.ConnectionLostNotice)
	}

	recs, _ := store.List(context.Background(), "u1")
	if len(recs) != 0 {
		t.Errorf("len(recs) = %d, want 0 (failed exchange must not persist)", len(recs))
	}
}

func TestSendWhileStreamingIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &fakeGateway{
		streamChunks:  []string{"slow answer"},
		streamStarted: started,
		streamRelease: release,
	}
	s, _ := newTestSession(t, gw)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()
	<-started

	if err := s.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Send err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}
}

func TestReportModeDetectsCompletion(t *testing.T) {
	gw := &fakeGateway{reportAnswer: "REPORT_COLLECTED\nSummary: bike theft at MG Road on April 2."}
	s, _ := newTestSession(t, gw)
	s.SetMode(ModeReport)

	if err := s.Send(context.Background(), "yes that is everything"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !s.ReportComplete() {
		t.Error("ReportComplete() = false, want true")
	}

	last := s.Transcript().Last()
	if strings.Contains(last.Text, "REPORT_COLLECTED") {
		t.Errorf("marker leaked into transcript: %q", last.Text)
	}
	if !strings.Contains(last.Text, "Summary: bike theft") {
		t.Errorf("summary missing from transcript: %q", last.Text)
	}
}

func TestDraftModeUsesAsk(t *testing.T) {
	gw := &fakeGateway{askAnswer: "For a rent agreement you need..."}
	s, _ := newTestSession(t, gw)
	s.SetMode(ModeDraft)

	if err := s.Send(context.Background(), "what goes in a rent agreement"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := s.Transcript().Last().Text; got != "For a rent agreement you need..." {
		t.Errorf("ai text = %q", got)
	}
}

func TestSetModeClearsTranscript(t *testing.T) {
	gw := &fakeGateway{streamChunks: []string{"answer"}}
	s, _ := newTestSession(t, gw)
	s.Send(context.Background(), "question")

	s.SetMode(ModeReport)
	if !s.Transcript().IsEmpty() {
		t.Error("transcript not cleared on mode switch")
	}
}

func TestVoiceNoteResolvesPlaceholder(t *testing.T) {
	gw := &fakeGateway{voiceResp: &gateway.VoiceResponse{
		UserText: "mera makan malik deposit nahi lauta raha",
		Answer:   "You can send a legal notice under...",
	}}
	s, _ := newTestSession(t, gw)

	if err := s.SendVoiceNote(context.Background(), strings.NewReader("RIFF"), "note.wav"); err != nil {
		t.Fatalf("SendVoiceNote: %v", err)
	}

	msgs := s.Transcript().Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Text != "mera makan malik deposit nahi lauta raha" {
		t.Errorf("user text = %q (placeholder not resolved)", msgs[0].Text)
	}
	if msgs[0].Sender != "user" {
		t.Errorf("sender = %q, want user", msgs[0].Sender)
	}
	if msgs[1].Text != "You can send a legal notice under..." {
		t.Errorf("ai text = %q", msgs[1].Text)
	}
}

func TestVoiceNoteFailureMarksPlaceholder(t *testing.T) {
	gw := &fakeGateway{voiceErr: errors.New("upload failed")}
	s, _ := newTestSession(t, gw)

	if err := s.SendVoiceNote(context.Background(), strings.NewReader("RIFF"), "note.wav"); err == nil {
		t.Fatal("SendVoiceNote returned nil, want error")
	}
	if got := s.Transcript().Last().Text; got != "(voice note could not be processed)" {
		t.Errorf("placeholder text = %q", got)
	}
}

func TestVoiceNoteDroppedAfterClear(t *testing.T) {
	block := make(chan struct{})
	gw := &blockingVoiceGateway{
		fakeGateway: fakeGateway{voiceResp: &gateway.VoiceResponse{UserText: "late", Answer: "late answer"}},
		block:       block,
	}
	s, _ := newTestSession(t, gw)

	done := make(chan error, 1)
	go func() { done <- s.SendVoiceNote(context.Background(), strings.NewReader("RIFF"), "n.wav") }()

	// The placeholder must exist before the clear for the handle to
	// go stale.
	waitForLen(t, s, 1)
	s.Clear()
	close(block)

	if err := <-done; err != nil {
		t.Fatalf("SendVoiceNote: %v", err)
	}
	if !s.Transcript().IsEmpty() {
		t.Error("stale voice result mutated a cleared transcript")
	}
}

// blockingVoiceGateway delays VoiceMessage until released.
type blockingVoiceGateway struct {
	fakeGateway
	block chan struct{}
}

func (g *blockingVoiceGateway) VoiceMessage(ctx context.Context, audio io.Reader, filename, history string) (*gateway.VoiceResponse, error) {
	<-g.block
	return g.fakeGateway.VoiceMessage(ctx, audio, filename, history)
}

func TestHandleCommandClear(t *testing.T) {
	gw := &fakeGateway{streamChunks: []string{"answer"}}
	s, _ := newTestSession(t, gw)
	s.Send(context.Background(), "question")

	s.HandleCommand(context.Background(), voice.Command{Type: voice.CommandClear})
	if !s.Transcript().IsEmpty() {
		t.Error("transcript not cleared by clear command")
	}
}

func TestHandleCommandQuerySends(t *testing.T) {
	gw := &fakeGateway{streamChunks: []string{"Section 420 covers cheating."}}
	s, _ := newTestSession(t, gw)

	err := s.HandleCommand(context.Background(), voice.Command{
		Type: voice.CommandQuery, Text: "what is section 420",
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if got := s.Transcript().Last().Text; got != "Section 420 covers cheating." {
		t.Errorf("ai text = %q", got)
	}
}

func TestStreamFinishedAfterClearDoesNotPersist(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		streamChunks:  []string{"Bail is release."},
		streamStarted: started,
		streamRelease: release,
	}
	s, store := newTestSession(t, gw)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "what is bail") }()

	<-started
	waitForLen(t, s, 2)

	// The conversation moves on while the reply is still streaming.
	s.Clear()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	recs, err := store.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(recs) = %d, want 0 (stale stream must not persist)", len(recs))
	}
}
