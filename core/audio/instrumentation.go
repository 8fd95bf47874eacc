package audio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/audio"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	capturedBytes, _ = meter.Int64Counter("audio.captured_bytes",
		metric.WithDescription("Bytes of audio captured from the input device"))
	playedBytes, _ = meter.Int64Counter("audio.played_bytes",
		metric.WithDescription("Bytes of speech audio queued for playback"))
	playbackClears, _ = meter.Int64Counter("audio.playback_clears",
		metric.WithDescription("Playback buffers cleared by interruptions"))
)
