package pipeline

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/pipeline"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	stagePanics, _ = meter.Int64Counter("pipeline.stage.panics",
		metric.WithDescription("Number of recovered processor panics"))
	queueTime, _ = meter.Float64Histogram("pipeline.stage.queue_time",
		metric.WithDescription("Time events spend queued before a stage processes them"),
		metric.WithUnit("s"))
	duplicatesDropped, _ = meter.Int64Counter("pipeline.parallel.duplicates_dropped",
		metric.WithDescription("Events dropped because another branch already forwarded them"))
)

func stageAttribute(name string) attribute.KeyValue {
	return attribute.String("pipeline.stage", name)
}
