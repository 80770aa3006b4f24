package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"
	"github.com/alanbuscaglia/clockify-mcp/internal/mcp"
)

type stubListener struct{}

func (stubListener) Accept() (net.Conn, error) { return nil, errors.New("not used") }
func (stubListener) Close() error              { return nil }
func (stubListener) Addr() net.Addr            { return &net.TCPAddr{} }

func newTestServer(t *testing.T, port int) *Server {
	t.Helper()
	gw := clockify.NewGateway(clockify.Options{APIKey: "key"})
	mcpSrv := mcp.NewServer(gw, mcp.Config{Version: "test"})
	return New(mcpSrv, Options{Port: port, Version: "test", Tools: mcp.ToolNames})
}

func TestStartReturnsListenError(t *testing.T) {
	s := New(nil, Options{Port: 7438})
	s.listen = func(network, address string) (net.Listener, error) {
		return nil, errors.New("listen failed")
	}

	err := s.Start()
	if err == nil {
		t.Fatalf("expected start to fail on listen error")
	}
	if !strings.Contains(err.Error(), "listen 127.0.0.1:7438") {
		t.Fatalf("error should name the address, got %v", err)
	}
}

func TestStartUsesInjectedServe(t *testing.T) {
	s := newTestServer(t, 7438)
	s.listen = func(network, address string) (net.Listener, error) {
		if network != "tcp" || address != "127.0.0.1:7438" {
			t.Fatalf("unexpected listen %s %s", network, address)
		}
		return stubListener{}, nil
	}
	s.serve = func(ln net.Listener, h http.Handler) error {
		if ln == nil || h == nil {
			t.Fatalf("expected listener and handler to be provided")
		}
		return errors.New("serve stopped")
	}

	err := s.Start()
	if err == nil || err.Error() != "serve stopped" {
		t.Fatalf("expected propagated serve error, got %v", err)
	}
}

func TestStartUsesDefaultListenWhenListenNil(t *testing.T) {
	s := newTestServer(t, 0)
	s.listen = nil
	s.serve = func(ln net.Listener, h http.Handler) error {
		if ln == nil || h == nil {
			t.Fatalf("expected non-nil listener and handler")
		}
		_ = ln.Close()
		return errors.New("serve stopped")
	}

	err := s.Start()
	if err == nil || err.Error() != "serve stopped" {
		t.Fatalf("expected propagated serve error, got %v", err)
	}
}

func TestStartUsesDefaultServeWhenServeNil(t *testing.T) {
	s := newTestServer(t, 7438)
	s.listen = func(network, address string) (net.Listener, error) {
		return stubListener{}, nil
	}
	s.serve = nil

	err := s.Start()
	if err == nil {
		t.Fatalf("expected start to fail when default http.Serve receives failing listener")
	}
}

func TestAddrUsesHostOption(t *testing.T) {
	s := New(nil, Options{Host: "0.0.0.0", Port: 9000})
	if got := s.Addr(); got != "0.0.0.0:9000" {
		t.Fatalf("Addr() = %q", got)
	}
}

func TestHealthReportsVersionAndTools(t *testing.T) {
	s := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body struct {
		Status  string   `json:"status"`
		Service string   `json:"service"`
		Version string   `json:"version"`
		Tools   []string `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || body.Service != "clockify-mcp" || body.Version != "test" {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if len(body.Tools) != len(mcp.ToolNames) {
		t.Fatalf("tools = %v", body.Tools)
	}
}

func TestHealthRejectsOtherMethods(t *testing.T) {
	s := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMCPEndpointHandlesInitialize(t *testing.T) {
	s := newTestServer(t, 0)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	payload := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+MCPPath, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("post initialize: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), `"clockify-mcp"`) {
		t.Fatalf("expected server info in initialize response, got %s", buf.String())
	}
}

func TestMCPEndpointAbsentWithoutServer(t *testing.T) {
	s := New(nil, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
