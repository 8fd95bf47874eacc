package miniaudio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/audio/miniaudio"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	capturedBytes, _ = meter.Int64Counter("miniaudio.capture.bytes",
		metric.WithDescription("Bytes of audio read from the capture device"),
		metric.WithUnit("By"))
	playbackUnderruns, _ = meter.Int64Counter("miniaudio.playback.underruns",
		metric.WithDescription("Device periods that ran out of queued audio mid-period"))
	clearedBytes, _ = meter.Int64Counter("miniaudio.playback.cleared_bytes",
		metric.WithDescription("Bytes of queued audio dropped by ClearBuffer"),
		metric.WithUnit("By"))
)
