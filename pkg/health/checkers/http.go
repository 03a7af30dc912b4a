package checkers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPChecker checks an HTTP endpoint with GET.
//
// By default any response below 500 counts as healthy: a paste service that
// answers 404 on its root is still reachable. WithSuccessOnly narrows that to
// 2xx for checks of our own health endpoints.
type HTTPChecker struct {
	url         string
	name        string
	client      *http.Client
	successOnly bool
}

// HTTPOption configures an HTTPChecker.
type HTTPOption func(*HTTPChecker)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTPChecker) {
		if client != nil {
			h.client = client
		}
	}
}

// WithSuccessOnly treats every non-2xx status as unhealthy.
func WithSuccessOnly() HTTPOption {
	return func(h *HTTPChecker) {
		h.successOnly = true
	}
}

// NewHTTPChecker creates a checker for url named name, or url when name is empty.
func NewHTTPChecker(url, name string, opts ...HTTPOption) *HTTPChecker {
	if name == "" {
		name = url
	}
	h := &HTTPChecker{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPChecker) Name() string {
	return h.name
}

func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// drain so the connection can be reused by the next check
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	case h.successOnly && (resp.StatusCode < 200 || resp.StatusCode > 299):
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
