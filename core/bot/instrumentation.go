package bot

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/bot"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	sessionsStarted, _ = meter.Int64Counter("bot.sessions",
		metric.WithDescription("Conversation sessions started"))
	participantsJoined, _ = meter.Int64Counter("bot.participants_joined",
		metric.WithDescription("Distinct speakers heard in a session"))
)
