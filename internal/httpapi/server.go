// Package httpapi exposes a JSON-RPC handler on a single POST route.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mattt/mailbridge/internal/sanitize"
	"github.com/mattt/mailbridge/jsonrpc"
)

const (
	contentType = "application/json; charset=utf-8"

	// maxBodySize matches the bridge's line limit
	maxBodySize = 16 * 1024 * 1024
)

// Server serves JSON-RPC requests on POST /
type Server struct {
	handler jsonrpc.Handler
	engine  *gin.Engine
	logger  *slog.Logger
}

var _ http.Handler = (*Server)(nil)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for request logs and recovered panics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server dispatching every request to handler
func New(handler jsonrpc.Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(s.logRequests, gin.CustomRecoveryWithWriter(io.Discard, s.recover))
	engine.POST("/", s.handle)
	engine.NoMethod(func(c *gin.Context) {
		writeResponse(c, http.StatusMethodNotAllowed, jsonrpc.NewResponse(nil, nil,
			jsonrpc.NewErrorf(jsonrpc.ErrInvalidRequest, "Method not allowed: %s", c.Request.Method)))
	})
	engine.NoRoute(func(c *gin.Context) {
		writeResponse(c, http.StatusNotFound, jsonrpc.NewResponse(nil, nil,
			jsonrpc.NewErrorf(jsonrpc.ErrInvalidRequest, "Not found: %s", c.Request.URL.Path)))
	})
	s.engine = engine

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handle(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		writeResponse(c, http.StatusBadRequest, jsonrpc.NewResponse(nil, nil,
			jsonrpc.NewErrorf(jsonrpc.ErrParse, "Parse error: %v", err)))
		return
	}

	var request jsonrpc.Request
	if err := json.Unmarshal(body, &request); err != nil {
		writeResponse(c, http.StatusBadRequest, jsonrpc.NewResponse(nil, nil,
			jsonrpc.NewErrorf(jsonrpc.ErrParse, "Parse error: %v", err)))
		return
	}

	if request.IsNotification() {
		s.logger.Debug("Received notification", "method", request.Method)
		c.Status(http.StatusNoContent)
		return
	}

	response := s.handler.Handle(c.Request.Context(), request)
	writeResponse(c, http.StatusOK, response)
}

func (s *Server) recover(c *gin.Context, err any) {
	s.logger.Error("Recovered from panic", "path", c.Request.URL.Path, "error", err)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	writeResponse(c, http.StatusInternalServerError, jsonrpc.NewResponse(nil, nil, jsonrpc.NewError(jsonrpc.ErrInternal, nil)))
	c.Abort()
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Info("Request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	)
}

// writeResponse encodes response and writes it as the request's only body
func writeResponse(c *gin.Context, status int, response jsonrpc.Response) {
	data, err := json.Marshal(response)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(jsonrpc.NewResponse(nil, nil, jsonrpc.NewErrorf(jsonrpc.ErrInternal, "Error encoding response: %v", err)))
	}
	c.Data(status, contentType, sanitize.RawBytes(sanitize.ForTransport(string(data))))
}
