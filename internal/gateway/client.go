package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns a traced client with a bounded timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

const maxResponseBytes = 1 << 20

// remote performs provider calls. Every failure to obtain a decodable 2xx
// response is a TransientError.
type remote struct {
	client  *http.Client
	gateway string
}

func (r remote) postJSON(ctx context.Context, op, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, op, out)
}

func (r remote) postForm(ctx context.Context, op, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r.do(req, op, out)
}

func (r remote) do(req *http.Request, op string, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return &TransientError{Gateway: r.gateway, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientError{Gateway: r.gateway, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransientError{Gateway: r.gateway, Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &TransientError{Gateway: r.gateway, Op: op, Err: fmt.Errorf("undecodable response: %w", err)}
	}
	return nil
}
