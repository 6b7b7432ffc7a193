// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the remote legal-AI backend.
//
// The backend exposes a small set of POST endpoints: single-shot Q&A,
// streamed chat, the FIR interview, voice-note upload, and document
// generation. The client owns no conversation state; it translates typed
// requests into HTTP calls and surfaces failures as recoverable results
// so a broken backend never crashes the conversation view.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL matches the backend's local development address.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry budget for transient errors.
	DefaultMaxRetries = 3

	// DefaultRequestsPerSecond is the client-side request rate cap.
	DefaultRequestsPerSecond = 4

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second
)

// ConnectionLostAnswer is the sentinel reply substituted when the backend
// is unreachable. Callers render it inline as an AI message.
const ConnectionLostAnswer = "Connection Lost. Is the backend running?"

// StatusError marks a sentinel response produced from a failed call.
const StatusError = "error"

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all non-streaming backend requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient serves streaming requests; no client timeout,
	// lifetime is controlled via context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Kind classifies gateway failures the way callers must react to them.
type Kind string

const (
	// KindNetwork means the backend could not be reached at all.
	KindNetwork Kind = "network-unreachable"

	// KindBadStatus means the backend answered with a non-2xx status.
	KindBadStatus Kind = "non-2xx-response"

	// KindMissingBody means a stream endpoint returned no body to read.
	KindMissingBody Kind = "missing-body"
)

// Error is a classified gateway failure.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s (HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ProfileContext carries the user profile fields the backend folds into
// its prompt: name, role, answer language, detail level, and Indian state.
type ProfileContext struct {
	Name        string
	Role        string
	Language    string
	DetailLevel string
	State       string
}

// askRequest is the wire shape for POST /ask.
type askRequest struct {
	Question    string `json:"question"`
	UserName    string `json:"user_name"`
	Role        string `json:"role"`
	Language    string `json:"language"`
	DetailLevel string `json:"detail_level"`
	State       string `json:"state"`
}

// AskResponse is the reply from POST /ask. Status "error" marks the
// sentinel produced locally from a transport failure.
type AskResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status"`
}

// reportRequest is the wire shape for POST /file-report-interview.
type reportRequest struct {
	UserInput string `json:"user_input"`
	History   string `json:"history"`
}

// ReportResponse is the reply from the FIR interview endpoint.
type ReportResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status"`
}

// reportCollectedMarker appears in the answer once the interview has
// gathered every FIR detail and produced a summary.
const reportCollectedMarker = "REPORT_COLLECTED"

// Completed reports whether the interview reached its summary.
func (r *ReportResponse) Completed() bool {
	return strings.Contains(r.Answer, reportCollectedMarker)
}

// VoiceResponse is the reply from POST /voice-message: the server-side
// transcription of the uploaded audio plus the generated answer.
type VoiceResponse struct {
	UserText string `json:"user_text"`
	Answer   string `json:"answer"`
}

// noticeRequest is the wire shape for POST /generate-legal-notice.
type noticeRequest struct {
	VoiceInput string `json:"voice_input"`
}

// RentAgreementRequest holds the form fields for rent-agreement drafting.
type RentAgreementRequest struct {
	Landlord string
	Tenant   string
	Rent     string
	Address  string
	Date     string
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP client for the legal-AI backend.
type Client struct {
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
	httpClient *http.Client
	streamer   *http.Client
}

// NewClient creates a client for the given base URL. An empty URL falls
// back to the local development default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultRequestsPerSecond),
		httpClient: sharedHTTPClient,
		streamer:   sharedStreamingClient,
	}
}

// WithMaxRetries sets the retry budget for transient errors.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// WithTimeout sets the per-request timeout for non-streaming calls.
// Non-positive values keep the default. The pooled client is shared
// across instances, so the timeout goes on a copy.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d <= 0 {
		return c
	}
	clone := *c.httpClient
	clone.Timeout = d
	c.httpClient = &clone
	return c
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func (c *Client) WithRateLimit(perSecond float64) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithHTTPClients overrides the shared HTTP clients, for tests.
func (c *Client) WithHTTPClients(plain, streaming *http.Client) *Client {
	c.httpClient = plain
	c.streamer = streaming
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ASK
// =============================================================================

// Ask sends a single question with profile context and returns the answer.
// Transport failures never escape: the reply degrades to the sentinel
// connection-lost answer with Status "error", which callers surface
// inline in the transcript.
func (c *Client) Ask(ctx context.Context, question string, profile ProfileContext) *AskResponse {
	body := askRequest{
		Question:    question,
		UserName:    profile.Name,
		Role:        profile.Role,
		Language:    profile.Language,
		DetailLevel: profile.DetailLevel,
		State:       profile.State,
	}

	var out AskResponse
	if err := c.postJSON(ctx, "/ask", body, &out); err != nil {
		return &AskResponse{Answer: ConnectionLostAnswer, Status: StatusError}
	}
	if out.Status == "" {
		out.Status = "success"
	}
	return &out
}

// =============================================================================
// FILE REPORT INTERVIEW
// =============================================================================

// FileReportInterview advances the FIR-drafting conversation by one turn.
// Same degradation policy as Ask.
func (c *Client) FileReportInterview(ctx context.Context, userInput, history string) *ReportResponse {
	body := reportRequest{UserInput: userInput, History: history}

	var out ReportResponse
	if err := c.postJSON(ctx, "/file-report-interview", body, &out); err != nil {
		return &ReportResponse{Answer: ConnectionLostAnswer, Status: StatusError}
	}
	return &out
}

// =============================================================================
// VOICE MESSAGE
// =============================================================================

// VoiceMessage uploads a recorded voice note; the backend transcribes it
// and generates the answer in one round trip. Unlike Ask, the error is
// returned so the caller can resolve its transcription placeholder.
func (c *Client) VoiceMessage(ctx context.Context, audio io.Reader, filename, history string) (*VoiceResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := mw.WriteField("history", history); err != nil {
		return nil, fmt.Errorf("failed to write history field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice-message", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out VoiceResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode voice response: %w", err)
	}
	return &out, nil
}

// =============================================================================
// DOCUMENT GENERATION
// =============================================================================

// GenerateLegalNotice drafts a legal notice from the dictated description
// and returns the PDF bytes.
func (c *Client) GenerateLegalNotice(ctx context.Context, voiceInput string) ([]byte, error) {
	body, err := json.Marshal(noticeRequest{VoiceInput: voiceInput})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-legal-notice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// GenerateRentAgreement drafts a rent agreement from the form fields and
// returns the DOCX bytes.
func (c *Client) GenerateRentAgreement(ctx context.Context, r RentAgreementRequest) ([]byte, error) {
	form := url.Values{
		"landlord": {r.Landlord},
		"tenant":   {r.Tenant},
		"rent":     {r.Rent},
		"address":  {r.Address},
		"date":     {r.Date},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-rent-agreement",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// postJSON marshals body, POSTs it with retries, and decodes the reply.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &Error{Kind: KindNetwork, Err: ctx.Err()}
			case <-time.After(backoffDelay(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		respBody, err := c.do(req)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do executes one request through the rate limiter and reads the body
// with a size cap. Non-2xx statuses become classified errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &Error{Kind: KindNetwork, Err: err}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Kind:   KindBadStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}

	// Read one byte past the cap so a body of exactly MaxResponseSize
	// is distinguishable from an oversized one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, &Error{Kind: KindBadStatus, Status: resp.StatusCode,
			Err: fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)}
	}
	return body, nil
}

// isRetryable reports whether a failed call is worth another attempt.
// Network errors and 5xx responses are transient; 4xx are not.
func isRetryable(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Kind {
	case KindNetwork:
		return !errors.Is(ge.Err, context.Canceled) && !errors.Is(ge.Err, context.DeadlineExceeded)
	case KindBadStatus:
		return ge.Status >= 500
	default:
		return false
	}
}

// backoffDelay computes the exponential backoff delay for an attempt.
func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}
