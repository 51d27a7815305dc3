package action

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/requestid"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxHTTPRedirects   = 10
)

// HTTPAction is the "http" built-in action, adapted from the teacher's
// scheduler.Executor: a tuned *http.Client (connection pooling, a TLS 1.2
// floor, and a redirect cap) that issues one request per Task invocation.
// Its url/method/headers/body come from the Job's Tags, read off the
// JobSnapshot frozen at trigger time — never live Job/Tag rows — so a
// concurrent edit to the Job cannot change a request already in flight.
type HTTPAction struct {
	client *http.Client
	log    *slog.Logger
}

// NewHTTPAction builds an HTTPAction with the teacher's connection-pooling
// and redirect-capping settings.
func NewHTTPAction(log *slog.Logger) *HTTPAction {
	return &HTTPAction{
		client: &http.Client{
			// Per-task timeouts are set via context; this is a safety net.
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxHTTPRedirects {
					return fmt.Errorf("stopped after %d redirects", maxHTTPRedirects)
				}
				return nil
			},
		},
		log: log.With("component", "action.http"),
	}
}

// Handle implements Handler.
func (h *HTTPAction) Handle(ctx context.Context, task domain.Task, snapshot domain.JobSnapshot) error {
	start := time.Now()

	url, ok := snapshot.Tag("http.url")
	if !ok || strings.TrimSpace(url) == "" {
		return fmt.Errorf("action http: job %q has no http.url tag", snapshot.Job.ID)
	}
	method := "GET"
	if v, ok := snapshot.Tag("http.method"); ok && strings.TrimSpace(v) != "" {
		method = strings.ToUpper(v)
	}

	timeout := defaultHTTPTimeout
	if v, ok := snapshot.Tag("http.timeoutseconds"); ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if v, ok := snapshot.Tag("http.body"); ok {
		body = strings.NewReader(v)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("action http: build request: %w", err)
	}
	if v, ok := snapshot.Tag("http.headers"); ok && v != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			return fmt.Errorf("action http: malformed http.headers tag: %w", err)
		}
		for k, hv := range headers {
			req.Header.Set(k, hv)
		}
	}

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	ctx = requestid.WithRequestID(ctx, reqID)

	h.log.InfoContext(ctx, "sending request",
		"task_id", task.ID,
		"job_id", snapshot.Job.ID,
		"method", method,
		"url", url,
	)

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.ErrorContext(ctx, "request failed",
			"task_id", task.ID,
			"error", err,
			"duration", time.Since(start),
		)
		return fmt.Errorf("action http: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool

	duration := time.Since(start)
	h.log.InfoContext(ctx, "received response",
		"task_id", task.ID,
		"status", resp.StatusCode,
		"duration", duration,
	)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("action http: %s %s returned status %d", method, url, resp.StatusCode)
	}
	return nil
}
