package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/Orac-G/x402-pay-with-safety"
)

// DefaultTimeout bounds a single HTTP attempt
const DefaultTimeout = 30 * time.Second

// maxResponseBody caps how much of a response is read into memory
const maxResponseBody = 10 << 20

// Response is the part of an HTTP response the negotiator consumes
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport is the POST-with-headers primitive the negotiator runs on.
// Implementations return an error only when no response was received.
type Transport interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error)
}

// NetTransport implements Transport over net/http
type NetTransport struct {
	client *http.Client
}

// NewNetTransport creates a transport with the given per-attempt timeout
func NewNetTransport(timeout time.Duration) *NetTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NetTransport{client: &http.Client{Timeout: timeout}}
}

// NewNetTransportWithClient wraps an existing http.Client
func NewNetTransportWithClient(client *http.Client) *NetTransport {
	return &NetTransport{client: client}
}

func (t *NetTransport) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "x402-pay/"+x402.Version)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
