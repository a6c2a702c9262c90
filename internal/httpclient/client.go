package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout is a ceiling for the shared client. Callers bound each
	// request more tightly with a context deadline.
	DefaultTimeout = 5 * time.Minute
	// MaxResponseBytes caps HTTP response bodies to prevent memory spikes.
	MaxResponseBytes = 8 * 1024 * 1024
	// Transport tuning for stable, long-lived connections.
	MaxIdleConns          = 50
	MaxIdleConnsPerHost   = 10
	IdleConnTimeout       = 90 * time.Second
	TLSHandshakeTimeout   = 15 * time.Second
	ExpectContinueTimeout = 2 * time.Second
)

// ErrResponseTooLarge is returned when a body exceeds MaxResponseBytes.
var ErrResponseTooLarge = fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)

var (
	defaultClient     *http.Client
	defaultClientOnce sync.Once
	overrideClient    *http.Client
)

// NewClient returns a new http.Client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GetDefaultClient returns the process-wide client.
func GetDefaultClient() *http.Client {
	if overrideClient != nil {
		return overrideClient
	}
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(DefaultTimeout)
	})
	return defaultClient
}

// SetDefaultClientForTesting overrides the singleton client for tests.
// It returns a restore function to reset the previous client.
func SetDefaultClientForTesting(client *http.Client) func() {
	prevOverride := overrideClient
	overrideClient = client
	return func() {
		overrideClient = prevOverride
	}
}

// NewJSONRequest builds a POST carrying body as application/json.
// Extra headers are copied onto the request.
func NewJSONRequest(ctx context.Context, url string, body []byte, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// DoAndRead performs an HTTP request, reads the entire response body,
// ensures the body is closed, and returns the body content and the response object.
func DoAndRead(client *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseBytes {
		return nil, resp, ErrResponseTooLarge
	}

	limited := &io.LimitedReader{R: resp.Body, N: MaxResponseBytes + 1}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseBytes {
		return nil, resp, ErrResponseTooLarge
	}

	return body, resp, nil
}

// IsTooLarge reports whether err came from the body size cap.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrResponseTooLarge)
}
