package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Header is a single request header.
type Header struct {
	Name  string
	Value string
}

// Request describes one outbound exchange.
type Request struct {
	URL              string
	Method           string
	Headers          []Header
	Body             []byte
	MaxResponseBytes int64
}

// Response is what the controller sent back. Status and body validation is
// left to the caller.
type Response struct {
	Status int
	Body   []byte
}

// ErrResponseTooLarge is wrapped by a TransportError when the reply exceeds
// Request.MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response exceeds max_response_bytes")

// TransportError reports that no response was delivered.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP call failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Caller performs a single request/response exchange.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// HTTPDoer is the subset of *http.Client used by HTTPGateway
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPGateway implements Caller over HTTP. It never retries.
type HTTPGateway struct {
	logger *zap.Logger
	client HTTPDoer
}

// Option defines a functional option for HTTPGateway
type Option func(*HTTPGateway)

// WithHTTPClient sets the HTTPDoer used for exchanges
func WithHTTPClient(client HTTPDoer) Option {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// WithTimeout replaces the client with an *http.Client bounded by timeout
func WithTimeout(timeout time.Duration) Option {
	return func(g *HTTPGateway) {
		g.client = &http.Client{Timeout: timeout}
	}
}

// New creates an HTTPGateway with a default *http.Client and optional overrides
func New(logger *zap.Logger, opts ...Option) *HTTPGateway {
	g := &HTTPGateway{
		logger: logger,
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Call sends req and returns the status and at most req.MaxResponseBytes of body.
// Any failure to obtain a complete response is returned as *TransportError.
func (g *HTTPGateway) Call(ctx context.Context, req Request) (Response, error) {
	transportErr := func(err error) error {
		return &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, transportErr(err)
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	start := time.Now()
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Debug("outbound call failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		return Response{}, transportErr(err)
	}
	defer httpResp.Body.Close()

	reader := io.Reader(httpResp.Body)
	if req.MaxResponseBytes > 0 {
		// One extra byte tells an exact fit apart from an oversized body.
		reader = io.LimitReader(httpResp.Body, req.MaxResponseBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return Response{}, transportErr(fmt.Errorf("failed to read response body: %w", err))
	}
	if req.MaxResponseBytes > 0 && int64(len(body)) > req.MaxResponseBytes {
		return Response{}, transportErr(fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, req.MaxResponseBytes))
	}

	g.logger.Debug("outbound call completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", httpResp.StatusCode),
		zap.Int("body_len", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	return Response{Status: httpResp.StatusCode, Body: body}, nil
}

// JSONHeaders is the fixed header list sent with every controller call.
func JSONHeaders() []Header {
	return []Header{{Name: "Content-Type", Value: "application/json"}}
}
