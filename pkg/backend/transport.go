package backend

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

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/middleware"
)

// DefaultTimeout is the maximum time to wait for backend responses.
const DefaultTimeout = 30 * time.Second

// Request is one JSON request to the backend.
type Request struct {
	Method string
	// Path segments joined under the base URL, e.g. {"datapuur", "db-schema"}.
	Path  []string
	Query url.Values
	// Body is marshalled as JSON when non-nil.
	Body  any
	Token string
}

// Response carries the status code and the raw body. Non-2xx responses are
// returned as responses, not errors; interpreting them is the client's job.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs one request/response exchange. Errors mean the exchange
// did not complete (network failure, timeout, cancelled context).
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport sends requests over HTTP to a base URL.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the backend at baseURL.
// timeout bounds every request; zero uses DefaultTimeout.
func NewHTTPTransport(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger != nil {
		logger = logger.Named("http")
	}
	return &HTTPTransport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: middleware.RequestLogger(logger)(http.DefaultTransport),
		},
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	endpoint, err := buildURL(t.baseURL, r.Query, r.Path...)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// buildURL appends each path segment to the base URL as one escaped segment.
func buildURL(baseURL string, query url.Values, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rawPath := strings.TrimSuffix(u.EscapedPath(), "/")
	plainPath := strings.TrimSuffix(u.Path, "/")
	for _, seg := range pathSegments {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid path segment %q", seg)
		}
		rawPath += "/" + url.PathEscape(seg)
		plainPath += "/" + seg
	}
	u.Path = plainPath
	u.RawPath = rawPath
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

var _ Transport = (*HTTPTransport)(nil)
