package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NERVsystems/mapagent/pkg/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxBodyBytes bounds how much of a response body is read.
const MaxBodyBytes = 16 << 20

// Doer executes HTTP requests. *http.Client satisfies it; tests substitute
// their own implementation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts an ordinary function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// NewHTTPClient returns a pooled, traced HTTP client with the given
// per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}),
	}
}

// Caller sends requests to a single upstream service and turns transport and
// status failures into *Error values.
type Caller struct {
	Service string
	Client  Doer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Do executes req and returns the response body of a 2xx answer.
func (c *Caller) Do(req *http.Request) ([]byte, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", c.Service, "method", req.Method, "url", redactURL(req))

	start := time.Now()
	resp, err := c.Client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.Metrics.ObserveUpstream(c.Service, "error", elapsed)
		timedOut := IsTimeout(err)
		logger.Warn("upstream request failed", "error", err, "timeout", timedOut, "elapsed", elapsed)
		return nil, TransportError(c.Service, err, timedOut)
	}
	defer resp.Body.Close()

	c.Metrics.ObserveUpstream(c.Service, strconv.Itoa(resp.StatusCode), elapsed)

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		logger.Warn("failed to read upstream response", "status", resp.StatusCode, "error", err)
		return nil, TransportError(c.Service, fmt.Errorf("read body: %w", err), IsTimeout(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ErrorMessage(body)
		logger.Warn("upstream returned error status", "status", resp.StatusCode, "message", msg)
		return nil, StatusError(c.Service, resp.StatusCode, msg, "")
	}

	logger.Debug("upstream request completed", "status", resp.StatusCode, "bytes", len(body), "elapsed", elapsed)
	return body, nil
}

// IsTimeout reports whether err stems from a deadline or client timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorMessage extracts a human-readable message from an error body. Both
// providers answer with either {"error": "..."} or
// {"error": {"code": ..., "message": "..."}}; anything else is returned as
// trimmed text.
func ErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil {
			return s
		}
		var detail struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "" {
			if detail.Code != nil {
				return fmt.Sprintf("%s (code %v)", detail.Message, detail.Code)
			}
			return detail.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// redactURL drops the query string, which may carry user input or keys.
func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
