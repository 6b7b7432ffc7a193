// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStreamChatYieldsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream-chat" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/stream-chat")
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["message"] != "what is section 420" {
			t.Errorf("message = %q, want %q", req["message"], "what is section 420")
		}
		if req["history"] != "User: hi\nAI: hello\n" {
			t.Errorf("history = %q", req["history"])
		}

		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Section ", "420 covers ", "cheating."} {
			w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL).StreamChat(context.Background(),
		"what is section 420", "User: hi\nAI: hello\n")
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer body.Close()

	all, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(all) != "Section 420 covers cheating." {
		t.Errorf("body = %q, want %q", all, "Section 420 covers cheating.")
	}
}

func TestStreamChatBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).StreamChat(context.Background(), "q", "")
	if !IsKind(err, KindBadStatus) {
		t.Errorf("IsKind(err, KindBadStatus) = false, err = %v", err)
	}
}

func TestStreamChatNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).StreamChat(context.Background(), "q", "")
	if !IsKind(err, KindNetwork) {
		t.Errorf("IsKind(err, KindNetwork) = false, err = %v", err)
	}
}
