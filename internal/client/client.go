// Package client calls the hooka RPC endpoint. Every failure is reported as
// an *Error so callers can fall back without inspecting transport details.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"hooka/internal/action"

	"github.com/rs/zerolog"
)

const (
	// SyncTimeout bounds routine reads and writes.
	SyncTimeout = 5 * time.Second
	// LongTimeout bounds AI generation and payment checkout.
	LongTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
)

// Error is the uniform failure value of Call.
type Error struct {
	Sentinel bool   `json:"_error"`
	Message  string `json:"message"`
	// Status is the HTTP status, zero when no response arrived.
	Status int `json:"-"`
	// Timeout is set when the client-side deadline expired.
	Timeout bool `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func newError(status int, format string, args ...any) *Error {
	return &Error{Sentinel: true, Status: status, Message: fmt.Sprintf(format, args...)}
}

// TokenSource supplies the bearer token attached to calls. Failures are
// tolerated; the call goes out without a token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client posts action envelopes to a single endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	tokens   TokenSource
	logger   zerolog.Logger
}

type Option func(*Client)

// WithTokenSource attaches bearer tokens from ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the default transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(endpoint string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		// Deadlines come from the per-call context.
		http:   &http.Client{},
		logger: logger.With().Str("service", "RPCClient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BudgetFor maps an action to its client-side timeout.
func BudgetFor(a action.Action) time.Duration {
	if a.Budget() == action.BudgetLong {
		return LongTimeout
	}
	return SyncTimeout
}

// Call sends {action, payload} and returns the raw JSON result. A zero
// timeout selects the action's default budget. The returned error is
// always an *Error.
func (c *Client) Call(ctx context.Context, a action.Action, payload any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = BudgetFor(a)
	}
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(map[string]any{"action": a, "payload": payload})
	if err != nil {
		return nil, newError(0, "marshaling payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(0, "creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Str("action", a.String()).Msg("No identity token, calling anonymously")
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e := newError(0, "%s timed out after %s", a, timeout)
			e.Timeout = true
			return nil, e
		}
		return nil, newError(0, "calling %s: %v", a, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e := newError(resp.StatusCode, "%s timed out after %s", a, timeout)
			e.Timeout = true
			return nil, e
		}
		return nil, newError(resp.StatusCode, "reading response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("Server Error: %d", resp.StatusCode)
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		c.logger.Debug().Str("action", a.String()).Int("status_code", resp.StatusCode).Str("error", msg).Msg("Action failed")
		return nil, &Error{Sentinel: true, Status: resp.StatusCode, Message: msg}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, newError(resp.StatusCode, "unexpected content type %q", ct)
		}
	}
	if !json.Valid(raw) {
		return nil, newError(resp.StatusCode, "invalid JSON response")
	}
	return raw, nil
}

// Caller performs one RPC call; *Client implements it.
type Caller interface {
	Call(ctx context.Context, a action.Action, payload any, timeout time.Duration) (json.RawMessage, error)
}

// Decode calls a and unmarshals the result into T.
func Decode[T any](ctx context.Context, c Caller, a action.Action, payload any, timeout time.Duration) (T, error) {
	var out T
	raw, err := c.Call(ctx, a, payload, timeout)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, newError(http.StatusOK, "decoding %s result: %v", a, err)
	}
	return out, nil
}
