// Package client talks to the remote content source over JSON HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/killchain/internal/model"
)

// ErrMalformed marks a reply that decoded but lacks required fields, or did
// not decode at all.
var ErrMalformed = errors.New("malformed response")

const maxErrorBody = 512

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Client calls the content source endpoints under a base URL such as
// http://localhost:5000/api.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetLog requests new round content.
func (c *Client) GetLog(ctx context.Context, req model.LogRequest) (model.LogResponse, error) {
	var resp model.LogResponse
	if err := c.post(ctx, "/get-log", req, &resp); err != nil {
		return model.LogResponse{}, err
	}
	switch {
	case resp.Log == nil:
		return model.LogResponse{}, fmt.Errorf("get-log: missing log: %w", ErrMalformed)
	case resp.Log.ID == "" || resp.Log.Raw == "":
		return model.LogResponse{}, fmt.Errorf("get-log: missing log id or raw: %w", ErrMalformed)
	case resp.TimeLimit == nil:
		return model.LogResponse{}, fmt.Errorf("get-log: missing time_limit: %w", ErrMalformed)
	}
	return resp, nil
}

// ValidatePhase submits a phase classification.
func (c *Client) ValidatePhase(ctx context.Context, req model.PhaseRequest) (model.PhaseResponse, error) {
	var resp model.PhaseResponse
	if err := c.post(ctx, "/validate-phase", req, &resp); err != nil {
		return model.PhaseResponse{}, err
	}
	if resp.IsCorrect == nil {
		return model.PhaseResponse{}, fmt.Errorf("validate-phase: missing is_correct: %w", ErrMalformed)
	}
	return resp, nil
}

// ValidateMitigation submits a mitigation choice.
func (c *Client) ValidateMitigation(ctx context.Context, req model.MitigationRequest) (model.MitigationResponse, error) {
	var resp model.MitigationResponse
	if err := c.post(ctx, "/validate-mitigation", req, &resp); err != nil {
		return model.MitigationResponse{}, err
	}
	if resp.IsCorrect == nil || resp.Points == nil {
		return model.MitigationResponse{}, fmt.Errorf("validate-mitigation: missing is_correct or points: %w", ErrMalformed)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to decode response: %v: %w", err, ErrMalformed)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body model.ErrorResponse
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// Incident converts a wire log into the engine's incident. Metadata values
// are rendered as strings; nested values are rendered as JSON.
func Incident(p model.LogPayload) model.Incident {
	inc := model.Incident{
		ID:          p.ID,
		RawText:     p.Raw,
		SourceLabel: p.Source,
		Severity:    p.Severity,
		Timestamp:   p.Timestamp,
	}
	if len(p.Metadata) == 0 {
		return inc
	}
	inc.Metadata = make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		inc.Metadata[k] = metadataString(v)
	}
	return inc
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, float64, int, int64:
		return fmt.Sprint(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = metadataString(item)
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
