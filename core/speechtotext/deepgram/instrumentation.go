package deepgram

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/speechtotext/deepgram"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	keepAlivesSent, _ = meter.Int64Counter("stt.deepgram.keepalives",
		metric.WithDescription("KeepAlive messages sent while the user was silent"))
	speakerChanges, _ = meter.Int64Counter("stt.deepgram.speaker_changes",
		metric.WithDescription("Utterances split because the diarized speaker changed"))
)
