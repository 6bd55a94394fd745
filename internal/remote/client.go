package remote

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-buku/internal/resilience"
)

const maxResponseBytes = 1 << 20

// ErrEmptyResponse is returned when an upstream answers 2xx without a body.
var ErrEmptyResponse = errors.New("remote: empty response body")

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: %s returned status %d", e.Target, e.StatusCode)
	}
	return fmt.Sprintf("remote: %s returned status %d: %s", e.Target, e.StatusCode, e.Body)
}

// HTTPClient returns an http.Client whose transport emits client spans.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
	}
}

// Options tune how a collaborator talks to its upstream.
type Options struct {
	Client      *http.Client
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Breaker     *resilience.Breaker
}

func (o Options) transport(target string) resilience.HTTPClient {
	client := o.Client
	if client == nil {
		client = HTTPClient(o.Timeout)
	}
	return resilience.HTTPClient{
		Client:      client,
		Breaker:     o.Breaker,
		BaseBackoff: o.BaseBackoff,
		MaxAttempts: o.MaxAttempts,
		Jitter:      o.Jitter,
		Timeout:     o.Timeout,
		Target:      target,
	}
}

type caller struct {
	target  string
	baseURL string
	http    resilience.HTTPClient
}

func newCaller(target, baseURL string, opts Options) (caller, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return caller{}, fmt.Errorf("remote: %s base URL is required", target)
	}
	return caller{target: target, baseURL: base, http: opts.transport(target)}, nil
}

// postJSON sends payload to path and decodes the answer into dst. Answers may
// be bare objects or wrapped in a {"data": ...} envelope.
func (c caller) postJSON(ctx context.Context, path string, payload, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("remote: encode %s request: %w", c.target, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("remote: read %s response: %w", c.target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Target: c.target, StatusCode: resp.StatusCode, Body: snippet(data)}
	}
	return decodeEnvelope(data, dst)
}

func decodeEnvelope(data []byte, dst any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrEmptyResponse
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		trimmed = envelope.Data
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
