// Package clockify talks to the Clockify REST API.
//
// Every call goes through Gateway.Do, which issues exactly one HTTP request
// and turns the outcome into either raw JSON or a classified *Error. The
// typed operations in api.go pair a Do call with the normalizer for that
// endpoint.
package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL   = "https://api.clockify.me/api/v1"
	DefaultUserAgent = "clockify-mcp/dev"

	apiKeyHeader = "X-Api-Key"

	// emptyObject stands in for a 204 or an empty success body.
	emptyObject = "{}"
	tracerName  = "github.com/alanbuscaglia/clockify-mcp/internal/clockify"
)

// Options configures a Gateway. Only APIKey is required for calls to
// succeed; a Gateway with an empty key is still valid and fails each call
// with a configuration error.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Gateway is immutable after construction and safe for concurrent use.
type Gateway struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewGateway(opts Options) *Gateway {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Gateway{
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(opts.APIKey),
		userAgent: userAgent,
		client:    client,
		logger:    logger,
		tracer:    tracer,
	}
}

// BaseURL returns the URL every request path is appended to.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Do sends one request to path (relative to the base URL) and returns the
// decoded JSON body. A 204 or empty success body yields "{}". body may be
// nil, a string or byte slice sent verbatim, or any JSON-encodable value.
func (g *Gateway) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("clockify: unsupported method %q", method)
	}
	if g.apiKey == "" {
		return nil, configurationError()
	}

	reader, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("clockify: encode request body: %w", err)
	}

	ctx, span := g.tracer.Start(ctx, "clockify.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	raw, status, err := g.roundTrip(ctx, method, path, reader)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		g.logger.Debug("clockify request failed", "method", method, "path", path, "status", status, "error", err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	g.logger.Debug("clockify request", "method", method, "path", path, "status", status)
	return raw, nil
}

func (g *Gateway) roundTrip(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, 0, transportError(err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, transportError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, upstreamError(resp.StatusCode, string(data))
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage(emptyObject), resp.StatusCode, nil
	}
	if !json.Valid(data) {
		return nil, resp.StatusCode, &Error{
			Kind:    KindUpstream,
			Message: fmt.Sprintf("Clockify API returned invalid JSON (status %d): %s", resp.StatusCode, data),
			Status:  resp.StatusCode,
			Body:    string(data),
		}
	}
	return json.RawMessage(data), resp.StatusCode, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}
