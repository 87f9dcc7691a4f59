package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mattt/mailbridge/jsonrpc"
)

// maxLineSize bounds a single input line
const maxLineSize = 16 * 1024 * 1024

// LineHandler handles one input line. It returns the line to write back, or
// false when nothing should be written.
type LineHandler interface {
	HandleLine(ctx context.Context, line []byte) ([]byte, bool)
}

// LineHandlerFunc adapts a function to LineHandler
type LineHandlerFunc func(ctx context.Context, line []byte) ([]byte, bool)

func (f LineHandlerFunc) HandleLine(ctx context.Context, line []byte) ([]byte, bool) {
	return f(ctx, line)
}

// Transport reads newline-delimited messages and writes one line per
// response. Every line is handled on its own goroutine; writes are
// serialized so lines never interleave.
type Transport struct {
	handler LineHandler
	scanner *bufio.Scanner
	out     io.Writer
	logger  *slog.Logger
	state   *State

	writeMu sync.Mutex
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithTransportLogger sets the transport's logger
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithState sets the state the transport reports into
func WithState(state *State) TransportOption {
	return func(t *Transport) {
		t.state = state
	}
}

// NewStdioTransport creates a new stdio transport. out is written to
// directly, one Write per line, with no buffering.
func NewStdioTransport(handler LineHandler, in io.Reader, out io.Writer, opts ...TransportOption) *Transport {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	t := &Transport{
		handler: handler,
		scanner: scanner,
		out:     out,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:   NewState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the transport's stream state
func (t *Transport) State() *State {
	return t.state
}

// Run reads lines until the input ends, then waits for every line still in
// flight before returning. When ctx is done it returns ctx.Err() at once, even
// while a read is blocked on open input.
func (t *Transport) Run(ctx context.Context) error {
	scanned := make(chan error, 1)
	go func() {
		scanned <- t.scan(ctx)
	}()

	select {
	case err := <-scanned:
		t.state.CloseStream()
		t.logger.Debug("Input closed", "inFlight", t.state.InFlight())

		select {
		case <-t.state.Done():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scan starts a goroutine per input line. It stops at the end of input, or
// at the next line read after ctx is done.
func (t *Transport) scan(ctx context.Context) error {
	for t.scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := bytes.TrimSpace(t.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		line = bytes.Clone(line)

		t.state.Begin()
		go func() {
			defer t.state.End()
			out, ok := t.handler.HandleLine(ctx, line)
			if !ok {
				return
			}
			if err := t.WriteLine(out); err != nil {
				t.logger.Error("Error writing response", "error", err)
			}
		}()
	}
	if err := t.scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// WriteLine writes data followed by a newline as a single Write. The lock is
// held until the write returns, so a blocked sink holds back later lines.
func (t *Transport) WriteLine(data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_, err := t.out.Write(buf)
	return err
}

// JSONRPCLines adapts a jsonrpc.Handler to the line protocol: each line is
// parsed as a request and the response is written back compacted; requests
// that are notifications get no output.
func JSONRPCLines(handler jsonrpc.Handler) LineHandler {
	return LineHandlerFunc(func(ctx context.Context, line []byte) ([]byte, bool) {
		var request jsonrpc.Request
		if err := json.Unmarshal(line, &request); err != nil {
			resp := jsonrpc.NewResponse(nil, nil, jsonrpc.NewErrorf(jsonrpc.ErrParse, "Parse error: %v", err))
			data, _ := json.Marshal(resp)
			return data, true
		}
		if request.IsNotification() {
			return nil, false
		}

		data, err := json.Marshal(handler.Handle(ctx, request))
		if err != nil {
			resp := jsonrpc.NewResponse(request.ID, nil, jsonrpc.NewError(jsonrpc.ErrInternal, err.Error()))
			data, _ = json.Marshal(resp)
		}
		return data, true
	})
}
