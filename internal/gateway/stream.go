// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// streamRequest is the wire shape for POST /stream-chat.
type streamRequest struct {
	Message string `json:"message"`
	History string `json:"history"`
}

// StreamChat opens a streamed chat completion for the given message and
// flattened history. The returned body yields raw UTF-8 text chunks; the
// caller owns it and must Close it. The call fails fast on transport and
// status errors so the caller can degrade to the connection-lost notice
// before any tokens render.
func (c *Client) StreamChat(ctx context.Context, message, history string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Err: err}
		}
	}

	payload, err := json.Marshal(streamRequest{Message: message, History: history})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stream-chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.streamer.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &Error{
			Kind:   KindBadStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend returned %s: %s", resp.Status, string(snippet)),
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &Error{Kind: KindMissingBody, Err: errors.New("stream response has no body")}
	}

	return resp.Body, nil
}
