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
)

// IdempotencyKeyHeader carries the deterministic key the server de-duplicates on.
const IdempotencyKeyHeader = "Idempotency-Key"

// SubmitResult distinguishes a fresh create from a duplicate acknowledgement.
// Both are success: a duplicate means the server already has this sale, which
// is exactly what a replay after a lost response looks like.
type SubmitResult int

const (
	ResultCreated SubmitResult = iota
	ResultDuplicate
)

// StatusError is a non-2xx response from the transaction endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

// Retriable reports whether the failure is worth retrying. 5xx means the
// server was struggling; any other 4xx means the payload itself was rejected
// and resending the same bytes cannot succeed.
func (e *StatusError) Retriable() bool {
	return e.Code >= 500
}

// IsRetriable classifies an error from Submit. Transport errors and timeouts
// are retryable; a StatusError answers for itself.
func IsRetriable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retriable()
	}
	return true
}

// Client talks to the backend transaction-creation and health endpoints.
type Client struct {
	baseURL    string
	healthPath string
	http       *http.Client
}

func New(baseURL, healthPath string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthPath: healthPath,
		http:       &http.Client{Timeout: timeout},
	}
}

// Submit posts one queued sale with its idempotency key. A 409 is the server
// telling us it already processed this key, which is treated as success.
func (c *Client) Submit(ctx context.Context, idempotencyKey string, payload json.RawMessage) (SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transactions", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyKeyHeader, idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ResultCreated, nil
	case resp.StatusCode == http.StatusConflict:
		return ResultDuplicate, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// ProbeHealth issues the cheap reachability check. Any response at all means
// the backend is up; errors just mean offline.
func (c *Client) ProbeHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe health: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
