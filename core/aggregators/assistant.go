package aggregators

import (
	"context"
	"strings"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
)

// AssistantAggregator records what the bot actually said. Text is collected
// between ResponseStarted and ResponseEnded, tool calls and their results are
// recorded as they pass, and an interruption keeps whatever was said so far.
type AssistantAggregator struct {
	state *conversation.State

	text strings.Builder
}

func NewAssistantAggregator(state *conversation.State) *AssistantAggregator {
	return &AssistantAggregator{state: state}
}

func (a *AssistantAggregator) Name() string { return "assistant aggregator" }

func (a *AssistantAggregator) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction == events.Downstream {
		switch e := event.(type) {
		case events.ResponseStarted:
			a.text.Reset()
		case events.GeneratedText:
			a.text.WriteString(e.Text)
		case events.ResponseEnded, events.InterruptionStarted, events.End, events.Cancel:
			a.flush()
		case events.FunctionCallStarted:
			a.state.Append(conversation.Message{
				Role:    conversation.RoleAssistant,
				Content: a.takeText(),
				ToolCalls: []conversation.ToolCall{{
					ID:        e.CallID,
					Name:      e.Name,
					Arguments: e.Arguments,
				}},
			})
		case events.FunctionCallResult:
			a.state.Append(conversation.ToolResultMessage(e.CallID, e.Name, e.Result))
		}
	}

	out.Push(ctx, event, direction)
}

func (a *AssistantAggregator) takeText() string {
	text := strings.TrimSpace(a.text.String())
	a.text.Reset()
	return text
}

func (a *AssistantAggregator) flush() {
	text := a.takeText()
	if text == "" {
		return
	}
	a.state.Append(conversation.AssistantMessage(text))
	logger.Debug("assistant message aggregated", "messages", a.state.Len())
}

// Reset starts a fresh conversation from the persona and the intro
// instructions.
func Reset(state *conversation.State, persona, intro string) {
	messages := []conversation.Message{conversation.SystemMessage(persona)}
	if intro != "" {
		messages = append(messages, conversation.SystemMessage(intro))
	}
	state.Reset(messages...)
}
