package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/alanbuscaglia/clockify-mcp/internal/clockify"
	"github.com/alanbuscaglia/clockify-mcp/internal/telemetry"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const errorKindPanic = "panic"

// wrap turns every handler failure, panics included, into an
// "Error: <message>" tool result with a nil Go error. It also records the
// invocation with the observer and the logger.
func wrap(name string, cfg Config, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		invocationID := uuid.NewString()
		started := time.Now()

		ctx, span := cfg.Observer.Start(ctx, name, invocationID)
		result, err := safeCall(ctx, req, h)

		inv := telemetry.Invocation{
			ToolName:     name,
			InvocationID: invocationID,
			Duration:     time.Since(started),
			Success:      err == nil,
		}
		if err != nil {
			inv.ErrorKind = errorKind(err)
			result = errorResult(err)
		} else if result == nil {
			result = mcp.NewToolResultText("")
		}
		cfg.Observer.Finish(ctx, span, inv)

		if err != nil {
			cfg.Logger.Warn("tool failed",
				"tool", name,
				"invocation_id", invocationID,
				"duration", inv.Duration,
				"error_kind", inv.ErrorKind,
				"error", err,
			)
		} else {
			cfg.Logger.Info("tool completed",
				"tool", name,
				"invocation_id", invocationID,
				"duration", inv.Duration,
			)
		}
		return result, nil
	}
}

func safeCall(ctx context.Context, req mcp.CallToolRequest, h server.ToolHandlerFunc) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return h(ctx, req)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("internal error: %v", e.value)
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("Error: " + err.Error())
}

func errorKind(err error) string {
	if _, ok := err.(*panicError); ok {
		return errorKindPanic
	}
	if kind := clockify.KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
