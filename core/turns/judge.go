package turns

import (
	"context"
	_ "embed"
	"slices"
	"strings"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed classifierInstr.tmpl
var completenessClassifierPrompt string

type JudgeOptions struct {
	Prompt string
}

type JudgeOption func(*JudgeOptions)

// WithClassifierPrompt replaces the built-in completeness instructions.
func WithClassifierPrompt(prompt string) JudgeOption {
	return func(o *JudgeOptions) {
		o.Prompt = prompt
	}
}

// JudgeContextFilter turns the live conversation into a completeness
// classification request: the classifier instructions, the assistant's last
// message and the user's trailing speech. It is the head of the classifier
// branch and consumes everything but system events.
type JudgeContextFilter struct {
	notifier notifier.Notifier
	prompt   string
}

func NewJudgeContextFilter(n notifier.Notifier, opts ...JudgeOption) *JudgeContextFilter {
	options := JudgeOptions{Prompt: completenessClassifierPrompt}
	for _, opt := range opts {
		opt(&options)
	}
	return &JudgeContextFilter{notifier: n, prompt: options.Prompt}
}

func (f *JudgeContextFilter) Name() string { return "completeness judge filter" }

func (f *JudgeContextFilter) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if events.IsSystem(event) {
		out.Push(ctx, event, direction)
		return
	}

	switch e := event.(type) {
	case events.MessagesRequest:
		// Explicit requests are answered without waiting for a verdict.
		logger.Debug("explicit messages request, skipping classification")
		f.notifier.Notify()
	case events.ContextUpdate:
		if e.Conversation == nil {
			return
		}
		if messages := f.classificationMessages(ctx, e.Conversation); messages != nil {
			out.Push(ctx, events.NewMessagesRequest(messages), events.Downstream)
		}
	default:
	}
}

func (f *JudgeContextFilter) classificationMessages(ctx context.Context, state *conversation.State) []conversation.Message {
	_, span := tracer.Start(ctx, "build completeness request")
	defer span.End()

	userText, lastAssistant := trailingUserText(state)
	span.SetAttributes(attribute.Int("completeness.user_text_length", len(userText)))
	if userText == "" {
		span.AddEvent("no user text")
		return nil
	}

	messages := []conversation.Message{conversation.SystemMessage(f.prompt)}
	if lastAssistant != nil {
		messages = append(messages, *lastAssistant)
	}
	messages = append(messages, conversation.UserMessage(userText))

	classifierRequests.Add(ctx, 1)
	logger.Debug("requesting completeness classification", "user_text", userText, "with_assistant_message", lastAssistant != nil)
	return messages
}

// trailingUserText joins the text of the user messages at the end of the
// conversation, oldest first. The assistant message is returned only if it
// directly precedes them.
func trailingUserText(state *conversation.State) (string, *conversation.Message) {
	var newestFirst [][]string
	var lastAssistant *conversation.Message

	for msg := range state.RValues {
		if msg.Role != conversation.RoleUser {
			if msg.Role == conversation.RoleAssistant {
				if text := msg.Text(); text != "" {
					lastAssistant = &conversation.Message{Role: conversation.RoleAssistant, Content: text}
				}
			}
			break
		}
		if segments := msg.TextSegments(); len(segments) > 0 {
			newestFirst = append(newestFirst, segments)
		}
	}

	slices.Reverse(newestFirst)
	var segments []string
	for _, messageSegments := range newestFirst {
		segments = append(segments, messageSegments...)
	}
	return strings.Join(segments, " "), lastAssistant
}
