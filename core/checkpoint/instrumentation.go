package checkpoint

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/checkpoint"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	checkpoints, _ = meter.Int64Counter("checkpoint.saves",
		metric.WithDescription("Conversation checkpoints written"))
	checkpointsSkipped, _ = meter.Int64Counter("checkpoint.skipped",
		metric.WithDescription("Checkpoints skipped because nothing was said yet"))
	checkpointFailures, _ = meter.Int64Counter("checkpoint.failures",
		metric.WithDescription("Checkpoints that failed to save"))
)
