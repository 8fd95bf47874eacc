package turns

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/turns"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	classifierRequests, _ = meter.Int64Counter("turns.classifier.requests",
		metric.WithDescription("Completeness classification requests built from the conversation"))
	classifierVerdicts, _ = meter.Int64Counter("turns.classifier.verdicts",
		metric.WithDescription("Completeness verdicts by outcome"))
	gateReleases, _ = meter.Int64Counter("turns.gate.releases",
		metric.WithDescription("Output gate releases"))
	gateReleasedEvents, _ = meter.Int64Counter("turns.gate.released_events",
		metric.WithDescription("Events flushed by output gate releases"))
	gateDiscardedEvents, _ = meter.Int64Counter("turns.gate.discarded_events",
		metric.WithDescription("Buffered events discarded by interruptions"))
	idleTimeouts, _ = meter.Int64Counter("turns.idle.timeouts",
		metric.WithDescription("User idle timeouts that released the output gate"))
)
