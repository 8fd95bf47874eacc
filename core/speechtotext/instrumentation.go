package speechtotext

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/speechtotext"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	transcriptions, _ = meter.Int64Counter("stt.transcriptions",
		metric.WithDescription("Final transcriptions received"))
	audioSendFailures, _ = meter.Int64Counter("stt.audio_send_failures",
		metric.WithDescription("Audio chunks the transcriber refused"))
)
