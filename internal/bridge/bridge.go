// Package bridge forwards JSON-RPC lines from a stdio client to the mail
// host over HTTP.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mattt/mailbridge/internal"
	"github.com/mattt/mailbridge/internal/sanitize"
	"github.com/mattt/mailbridge/jsonrpc"
	"github.com/mattt/mailbridge/mcp"
)

const (
	// DefaultURL is where the mail host listens unless told otherwise
	DefaultURL = "http://127.0.0.1:8765/"

	// DefaultTimeout bounds every forwarded request, retries included
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the number of extra attempts made when the host
	// cannot be reached at all
	DefaultRetries = 2
)

// Bridge answers initialize itself and forwards every other request line to
// the host. It implements mcp.LineHandler.
type Bridge struct {
	url     string
	timeout time.Duration
	retries int
	info    mcp.ServerInfo
	logger  *slog.Logger
	client  *retryablehttp.Client
}

var _ mcp.LineHandler = (*Bridge)(nil)

// Option configures a Bridge
type Option func(*Bridge)

// WithTimeout sets the per-request deadline
func WithTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = timeout
	}
}

// WithRetries sets how many times a refused connection is retried
func WithRetries(retries int) Option {
	return func(b *Bridge) {
		b.retries = retries
	}
}

// WithServerInfo sets the name and version reported by initialize
func WithServerInfo(name, version string) Option {
	return func(b *Bridge) {
		b.info = mcp.ServerInfo{Name: name, Version: version}
	}
}

// WithLogger sets the bridge's logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a bridge that posts to url
func New(url string, opts ...Option) *Bridge {
	b := &Bridge{
		url:     url,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
		info:    mcp.ServerInfo{Name: "mailbridge", Version: "dev"},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = b.retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.CheckRetry = retryOnDial
	client.Logger = b.logger
	client.HTTPClient.Transport = internal.NewHeaderTransport(
		client.HTTPClient.Transport,
		fmt.Sprintf("mailbridge/%s", b.info.Version),
	)
	b.client = client

	return b
}

// HandleLine handles one input line. Notifications yield no output.
func (b *Bridge) HandleLine(ctx context.Context, line []byte) ([]byte, bool) {
	var request jsonrpc.Request
	if err := json.Unmarshal(line, &request); err != nil {
		return bridgeError("Bridge parse error: %v", err), true
	}

	if request.IsNotification() {
		b.logger.Debug("Dropping notification", "method", request.Method)
		return nil, false
	}

	if request.Method == "initialize" {
		resp := jsonrpc.NewResponse(request.ID, mcp.NewInitializeResponse(b.info), nil)
		data, err := json.Marshal(resp)
		if err != nil {
			return bridgeError("Bridge protocol error: %v", err), true
		}
		return data, true
	}

	return b.forward(ctx, request.Method, line), true
}

func (b *Bridge) forward(ctx context.Context, method string, line []byte) []byte {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	body, err := b.post(ctx, line)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.logger.Warn("Request timed out", "method", method, "timeout", b.timeout)
			return bridgeError("Bridge timeout: request exceeded %s", b.timeout)
		}
		b.logger.Warn("Request failed", "method", method, "error", err)
		return bridgeError("Bridge connection error: %v", err)
	}
	b.logger.Debug("Forwarded request", "method", method, "duration", time.Since(start))

	if !json.Valid(body) {
		repaired := []byte(sanitize.LineProtocol(string(body)))
		if !json.Valid(repaired) {
			return bridgeError("Bridge connection error: invalid JSON in response")
		}
		b.logger.Debug("Repaired response body", "method", method)
		body = repaired
	}

	if !jsonrpc.IsResponseEnvelope(body) {
		return bridgeError("Bridge protocol error: response is not a JSON-RPC response")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return bridgeError("Bridge protocol error: %v", err)
	}
	return buf.Bytes()
}

func (b *Bridge) post(ctx context.Context, line []byte) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.url, line)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return body, nil
}

// retryOnDial retries only when no connection could be made, so a request
// the host may have received is never sent twice.
func retryOnDial(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true, nil
	}
	return false, nil
}

func bridgeError(format string, args ...interface{}) []byte {
	resp := jsonrpc.NewResponse(nil, nil, jsonrpc.NewErrorf(jsonrpc.ErrParse, format, args...))
	data, _ := json.Marshal(resp)
	return data
}
