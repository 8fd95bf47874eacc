package llms

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/llms"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	generationsStarted, _ = meter.Int64Counter("llms.generations.started",
		metric.WithDescription("Response generations started"))
	generationsCancelled, _ = meter.Int64Counter("llms.generations.cancelled",
		metric.WithDescription("Response generations cancelled before completion"))
	toolCallsExecuted, _ = meter.Int64Counter("llms.tool_calls",
		metric.WithDescription("Tool calls executed on behalf of the model"))
	timeToFirstToken, _ = meter.Float64Histogram("llms.time_to_first_token",
		metric.WithDescription("Time from request to the first content chunk"),
		metric.WithUnit("s"))
)
