package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattt/mailbridge/internal/compose"
	"github.com/mattt/mailbridge/internal/mailstore"
	"github.com/mattt/mailbridge/internal/search"
	"github.com/mattt/mailbridge/jsonrpc"
)

// Server dispatches MCP requests to the mail tools
type Server struct {
	info     ServerInfo
	store    mailstore.Store
	search   *search.Engine
	composer *compose.Builder
	logger   *slog.Logger

	registry *registry
}

var _ jsonrpc.Handler = (*Server)(nil)

// ServerOption configures a Server
type ServerOption func(*Server) error

// WithServerInfo sets the name and version reported by initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) error {
		s.info = ServerInfo{Name: name, Version: version}
		return nil
	}
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithSearchEngine sets the engine used by searchMessages
func WithSearchEngine(engine *search.Engine) ServerOption {
	return func(s *Server) error {
		s.search = engine
		return nil
	}
}

// NewServer creates a new MCP server over store
func NewServer(store mailstore.Store, opts ...ServerOption) (*Server, error) {
	s := &Server{
		info:   ServerInfo{Name: "mailbridge", Version: "dev"},
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.search == nil {
		s.search = search.New(search.WithLogger(s.logger))
	}
	s.composer = compose.NewBuilder(store, compose.WithLogger(s.logger))

	reg, err := newRegistry(s)
	if err != nil {
		return nil, fmt.Errorf("error building tool registry: %w", err)
	}
	s.registry = reg

	return s, nil
}

// Info returns the server's name and version
func (s *Server) Info() ServerInfo {
	return s.info
}

// Tools returns the tool descriptors in registry order
func (s *Server) Tools() []Tool {
	return s.registry.descriptors()
}

// Handle processes a single JSON-RPC request and returns a response
func (s *Server) Handle(ctx context.Context, request jsonrpc.Request) jsonrpc.Response {
	s.logger.Debug("Handling request", "method", request.Method, "id", request.ID.Value())

	switch request.Method {
	case "initialize":
		return jsonrpc.NewResponse(request.ID, NewInitializeResponse(s.info), nil)
	case "ping":
		return jsonrpc.NewResponse(request.ID, PingResponse{}, nil)
	case "tools/list":
		return jsonrpc.NewResponse(request.ID, ToolsListResponse{Tools: s.Tools()}, nil)
	case "tools/call":
		return s.handleToolsCall(ctx, request)
	default:
		return jsonrpc.NewResponse(request.ID, nil, jsonrpc.NewErrorf(jsonrpc.ErrServer, "Method not found: %s", request.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, request jsonrpc.Request) jsonrpc.Response {
	var params ToolCallParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return jsonrpc.NewResponse(request.ID, nil, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}

	if params.Name == "" {
		return jsonrpc.NewResponse(request.ID, nil, jsonrpc.NewErrorf(jsonrpc.ErrServer, "Missing tool name"))
	}

	kind, ok := ParseToolKind(params.Name)
	if !ok {
		return jsonrpc.NewResponse(request.ID, nil, jsonrpc.NewErrorf(jsonrpc.ErrServer, "Unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	result := s.registry.call(ctx, kind, args)
	text, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Error encoding tool result", "tool", params.Name, "error", err)
		text, _ = json.Marshal(errorPayload{Error: fmt.Sprintf("Error encoding result: %v", err)})
	}

	return jsonrpc.NewResponse(request.ID, CallToolResult{
		Content: []Content{NewTextContent(string(text))},
	}, nil)
}
