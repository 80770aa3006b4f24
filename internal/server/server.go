// Package server exposes the MCP tool server over streamable HTTP.
//
// The stdio transport covers local assistants. This one serves clients that
// connect over the network: MCP traffic goes to /mcp, and /health reports
// liveness plus the registered tool set.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	DefaultHost = "127.0.0.1"
	MCPPath     = "/mcp"
)

type Options struct {
	Host    string
	Port    int
	Version string

	// Tools are the registered tool names, reported by /health.
	Tools  []string
	Logger *slog.Logger
}

type Server struct {
	mux     *http.ServeMux
	host    string
	port    int
	version string
	tools   []string
	logger  *slog.Logger
	listen  func(network, address string) (net.Listener, error)
	serve   func(net.Listener, http.Handler) error
}

func New(mcpSrv *mcpserver.MCPServer, opts Options) *Server {
	host := opts.Host
	if host == "" {
		host = DefaultHost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tools := opts.Tools
	if tools == nil {
		tools = []string{}
	}

	srv := &Server{
		host:    host,
		port:    opts.Port,
		version: opts.Version,
		tools:   tools,
		logger:  logger,
		listen:  net.Listen,
		serve:   http.Serve,
	}
	srv.mux = http.NewServeMux()
	srv.routes(mcpSrv)
	return srv
}

// Addr is the host:port Start listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprint(s.port))
}

func (s *Server) Start() error {
	addr := s.Addr()
	listenFn := s.listen
	if listenFn == nil {
		listenFn = net.Listen
	}
	serveFn := s.serve
	if serveFn == nil {
		serveFn = http.Serve
	}

	ln, err := listenFn("tcp", addr)
	if err != nil {
		return fmt.Errorf("clockify-mcp server: listen %s: %w", addr, err)
	}
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_path", MCPPath)
	return serveFn(ln, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes(mcpSrv *mcpserver.MCPServer) {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	if mcpSrv != nil {
		s.mux.Handle(MCPPath, mcpserver.NewStreamableHTTPServer(mcpSrv))
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "clockify-mcp",
		"version": s.version,
		"tools":   s.tools,
	})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
