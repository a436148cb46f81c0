package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/stitch/pkg/log"
)

// WithTracing wraps a tool handler with a span per call and structured logs
// carrying the span's trace ID.
func WithTracing[In, Out any](tracer trace.Tracer, handler mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		name := req.Params.Name

		ctx, span := tracer.Start(ctx, name)
		defer span.End()

		logger := log.WithContext(ctx)

		logger.DebugContext(ctx, "handling tool call",
			slog.String("name", name),
			slog.Any("progress_token", req.Params.GetProgressToken()),
		)

		result, out, err := handler(ctx, req, in)
		if err != nil {
			logger.ErrorContext(ctx, "tool call failed",
				slog.String("name", name),
				slog.Any("error", err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return result, out, err
		}

		logger.DebugContext(ctx, "tool call completed", slog.String("name", name))

		return result, out, nil
	}
}
