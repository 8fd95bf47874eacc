package turns

import (
	"context"
	"strings"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	verdictComplete   = "YES"
	verdictIncomplete = "NO"
)

// CompletenessCheck reads the classifier's reply. A YES marks the end of the
// user's turn and wakes the output gate, a NO leaves the gate closed, and
// anything else is logged and dropped.
type CompletenessCheck struct {
	notifier notifier.Notifier

	reply strings.Builder
}

func NewCompletenessCheck(n notifier.Notifier) *CompletenessCheck {
	return &CompletenessCheck{notifier: n}
}

func (c *CompletenessCheck) Name() string { return "completeness check" }

func (c *CompletenessCheck) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch e := event.(type) {
	case events.ResponseStarted:
		c.reply.Reset()
	case events.GeneratedText:
		c.reply.WriteString(e.Text)
	case events.ResponseEnded:
		reply := c.reply.String()
		c.reply.Reset()
		c.handleVerdict(ctx, strings.TrimSpace(reply), out)
	default:
		out.Push(ctx, event, direction)
	}
}

func (c *CompletenessCheck) handleVerdict(ctx context.Context, verdict string, out pipeline.Output) {
	outcome := "unexpected"
	defer func() {
		classifierVerdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("completeness.verdict", outcome)))
	}()

	switch verdict {
	case verdictComplete:
		outcome = "complete"
		logger.Debug("completeness check: complete")
		out.Push(ctx, events.NewUserStoppedSpeaking(), events.Downstream)
		c.notifier.Notify()
	case verdictIncomplete:
		outcome = "incomplete"
		logger.Debug("completeness check: incomplete")
	default:
		logger.Warn("unexpected completeness check reply", "reply", verdict)
	}
}
