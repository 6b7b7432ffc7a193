// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nyaysahayak/sahayak-tui/internal/chat"
	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// stubGateway satisfies chat.Gateway with canned replies.
type stubGateway struct{}

func (stubGateway) Ask(ctx context.Context, q string, p gateway.ProfileContext) *gateway.AskResponse {
	return &gateway.AskResponse{Answer: "ok", Status: "success"}
}

func (stubGateway) StreamChat(ctx context.Context, m, h string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("ok")), nil
}

func (stubGateway) FileReportInterview(ctx context.Context, u, h string) *gateway.ReportResponse {
	return &gateway.ReportResponse{Answer: "ok"}
}

func (stubGateway) VoiceMessage(ctx context.Context, a io.Reader, f, h string) (*gateway.VoiceResponse, error) {
	return &gateway.VoiceResponse{UserText: "hi", Answer: "ok"}, nil
}

func TestVoiceCommandsDrainIntoSession(t *testing.T) {
	session := chat.NewSession(stubGateway{}, nil, gateway.ProfileContext{})
	session.Transcript().AddUserMessage("hello")

	pr, pw := io.Pipe()
	p := voice.NewPipeline(voice.NewLineRecognizer(func() (io.ReadCloser, error) {
		return pr, nil
	}))
	if err := p.Start(true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go drainVoiceCommands(ctx, p, session, io.Discard)

	if _, err := pw.Write([]byte("clear chat\n")); err != nil {
		t.Fatalf("write transcript line: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.Transcript().Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transcript length = %d, want 0 after voice clear", session.Transcript().Len())
}
