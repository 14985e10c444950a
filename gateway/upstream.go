package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Upstream defaults.
const (
	DefaultUpstreamTimeout  = 30 * time.Second
	DefaultMaxResponseBytes = 32 << 20
)

// UpstreamConfig configures an Upstream.
type UpstreamConfig struct {
	// Client performs the requests.
	// Default: an http.Client with DefaultUpstreamTimeout
	Client *http.Client

	// MaxResponseBytes caps the response body read.
	// Default: 32 MiB
	MaxResponseBytes int64

	// UserAgent is sent on every request when set.
	UserAgent string
}

// Upstream posts GraphQL operations to query-service backends.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: anything but a 2xx answer with a JSON body is ErrUpstream. A
// non-2xx answer is a *StatusError.
// - No retry: each call makes exactly one HTTP request.
type Upstream struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewUpstream creates an Upstream with defaults applied.
func NewUpstream(cfg UpstreamConfig) *Upstream {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultUpstreamTimeout}
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return &Upstream{
		client:    cfg.Client,
		maxBytes:  cfg.MaxResponseBytes,
		userAgent: cfg.UserAgent,
	}
}

type upstreamRequest struct {
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables"`
}

var emptyVariables = json.RawMessage(`{}`)

// Post sends {query, variables} to target and returns the response body with
// the status code. Absent variables are sent as {}. The status is 0 when no
// response was received.
func (u *Upstream) Post(ctx context.Context, target, query string, variables json.RawMessage) (json.RawMessage, int, error) {
	if len(variables) == 0 {
		variables = emptyVariables
	}
	payload, err := json.Marshal(upstreamRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encode request: %v", ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid endpoint", ErrUpstream)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		// url.Error embeds the endpoint, which may carry a credential.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if int64(len(body)) > u.maxBytes {
		return nil, resp.StatusCode, fmt.Errorf("%w: response exceeds %d bytes", ErrUpstream, u.maxBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &StatusError{Status: resp.StatusCode}
	}
	if !json.Valid(body) {
		return nil, resp.StatusCode, fmt.Errorf("%w: response is not JSON", ErrUpstream)
	}
	return body, resp.StatusCode, nil
}
