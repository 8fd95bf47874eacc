package tools

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/xperto/core/tools"

var tracer = otel.Tracer(scopeName)
