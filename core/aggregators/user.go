package aggregators

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

type UserOptions struct {
	SpeakerLabels bool
}

type UserOption func(*UserOptions)

// WithSpeakerLabels wraps diarized text in <speaker_N> tags so the model can
// tell participants apart.
func WithSpeakerLabels() UserOption {
	return func(o *UserOptions) {
		o.SpeakerLabels = true
	}
}

// UserAggregator turns final transcriptions into user messages. Text heard
// while the user is speaking is held until they pause, then appended as one
// message and announced with a ContextUpdate. Every pause triggers a new
// ContextUpdate, so responses are generated speculatively and the
// completeness classifier decides which of them is released.
type UserAggregator struct {
	state   *conversation.State
	options UserOptions

	speaking bool
	pending  []string
}

func NewUserAggregator(state *conversation.State, opts ...UserOption) *UserAggregator {
	options := UserOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &UserAggregator{state: state, options: options}
}

func (a *UserAggregator) Name() string { return "user aggregator" }

func (a *UserAggregator) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction != events.Downstream {
		out.Push(ctx, event, direction)
		return
	}

	switch e := event.(type) {
	case events.TranscriptionUpdate:
		out.Push(ctx, event, direction)
		if !e.Final {
			return
		}
		if text := a.label(e); text != "" {
			a.pending = append(a.pending, text)
		}
		if !a.speaking {
			a.flush(ctx, out)
		}
	case events.InterruptionStarted:
		a.speaking = true
		out.Push(ctx, event, direction)
	case events.InterruptionEnded:
		a.speaking = false
		out.Push(ctx, event, direction)
		a.flush(ctx, out)
	case events.End, events.Cancel:
		a.commit()
		out.Push(ctx, event, direction)
	default:
		out.Push(ctx, event, direction)
	}
}

func (a *UserAggregator) label(e events.TranscriptionUpdate) string {
	text := strings.TrimSpace(e.Text)
	if text == "" || !a.options.SpeakerLabels || e.SpeakerID == "" {
		return text
	}
	return fmt.Sprintf("<speaker_%s>%s</speaker_%s>", e.SpeakerID, text, e.SpeakerID)
}

func (a *UserAggregator) flush(ctx context.Context, out pipeline.Output) {
	if a.commit() {
		out.Push(ctx, events.NewContextUpdate(a.state), events.Downstream)
	}
}

// commit appends the pending text without asking for a response.
func (a *UserAggregator) commit() bool {
	if len(a.pending) == 0 {
		return false
	}
	text := strings.Join(a.pending, " ")
	a.pending = nil

	a.state.Append(conversation.UserMessage(text))
	logger.Debug("user message aggregated", "text", text, "messages", a.state.Len())
	return true
}
