// Package httpx sends JSON requests to the server-side functions (mailbox provisioner, content generator)
// and retries transient failures.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPError carries the status and body of a non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 300))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// DoWithRetry executes the request built by buildReq, retrying network errors, 5xx and 429 responses
// with exponential backoff. The response body is always read in full.
func DoWithRetry(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	cfg RetryConfig,
) (*http.Response, []byte, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, attempt-1, cfg, lastErr); err != nil {
				return nil, nil, err
			}
		}

		req, err := buildReq(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "building request")
		}

		resp, err := client.Do(req)
		if err != nil {
			if isRetryableNetErr(err) {
				lastErr = err
				continue
			}
			return nil, nil, err
		}

		body, err := readAndClose(resp.Body)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		herr := &retryableError{
			HTTPError: &HTTPError{
				Method:     req.Method,
				URL:        req.URL.String(),
				StatusCode: resp.StatusCode,
				Body:       body,
			},
			retryAfter: ParseRetryAfter(resp),
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, body, herr.HTTPError
		}
		lastErr = herr
	}

	if herr, ok := lastErr.(*retryableError); ok {
		return nil, nil, herr.HTTPError
	}
	return nil, nil, errors.Wrap(lastErr, "giving up")
}

// retryableError remembers the Retry-After of a response between attempts.
type retryableError struct {
	*HTTPError
	retryAfter time.Duration
}

func readAndClose(rc io.ReadCloser) ([]byte, error) {
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func sleepBackoff(ctx context.Context, attempt int, cfg RetryConfig, lastErr error) error {
	var sleep time.Duration
	if herr, ok := lastErr.(*retryableError); ok {
		sleep = herr.retryAfter
	}
	if sleep <= 0 {
		sleep = cfg.BaseDelay * time.Duration(1<<(attempt-1))
		if sleep > cfg.MaxDelay {
			sleep = cfg.MaxDelay
		}
		sleep += time.Duration(rand.Int63n(int64(cfg.BaseDelay)/2 + 1))
	} else if sleep > cfg.MaxDelay {
		sleep = cfg.MaxDelay
	}

	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof")
}

// ParseRetryAfter parses the Retry-After header, in seconds or as an HTTP date. It returns 0 when missing.
func ParseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// PostJSON posts in as JSON with a bearer key and decodes the response into out (if not nil).
func PostJSON(ctx context.Context, client *http.Client, url, key string, in, out interface{}, cfg RetryConfig) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	_, body, err := DoWithRetry(ctx, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		return req, nil
	}, cfg)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(body, out), "decoding response: %s", snippet(body, 300))
}
