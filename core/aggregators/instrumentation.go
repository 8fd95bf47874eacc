package aggregators

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/xperto/core/aggregators"

var logger = otelslog.NewLogger(scopeName)
