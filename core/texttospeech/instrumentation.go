package texttospeech

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/xperto/core/texttospeech"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	sentencesSpoken, _ = meter.Int64Counter("tts.sentences",
		metric.WithDescription("Sentences sent for synthesis"))
	fillersSpoken, _ = meter.Int64Counter("tts.fillers",
		metric.WithDescription("Filler phrases spoken while a tool runs"))
	utterancesCancelled, _ = meter.Int64Counter("tts.cancelled",
		metric.WithDescription("Utterances cancelled by interruptions"))
)
