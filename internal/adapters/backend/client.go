// Package backend talks to the trip backend and the routing engine over HTTP.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tripline/internal/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Option customizes a client.
type Option func(*client)

// WithDial replaces the network dialer. Tests use it with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *client) { c.http.Dial = dial }
}

type client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

func newClient(component, baseURL string, timeout time.Duration, opts ...Option) *client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &client{
		http: &fasthttp.Client{
			Name:                "tripline",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logging.Component(component),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(data)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	start := time.Now()
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	status := resp.StatusCode()
	c.logger.Debug("request", "method", method, "path", path, "status", status, "duration_ms", time.Since(start).Milliseconds())

	if status < 200 || status >= 300 {
		return &StatusError{Method: method, Path: path, Status: status, Body: truncate(string(resp.Body()), 256)}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
