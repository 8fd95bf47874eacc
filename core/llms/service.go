package llms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const defaultMaxToolRounds = 5

type ServiceOptions struct {
	Name          string
	Tools         ToolCaller
	MaxToolRounds int
}

type ServiceOption func(*ServiceOptions)

func WithName(name string) ServiceOption {
	return func(o *ServiceOptions) {
		o.Name = name
	}
}

// WithTools lets the model call tools. Without it the conversation's tool
// schemas are not sent to the model.
func WithTools(tools ToolCaller) ServiceOption {
	return func(o *ServiceOptions) {
		o.Tools = tools
	}
}

func WithMaxToolRounds(rounds int) ServiceOption {
	return func(o *ServiceOptions) {
		o.MaxToolRounds = rounds
	}
}

// Service generates a response every time the conversation changes. Only the
// newest trigger is worked on: a new ContextUpdate or MessagesRequest cancels
// the generation in flight, and so do interruptions and the end of the
// session.
type Service struct {
	generator Generator
	options   ServiceOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	running chan struct{}
}

func NewService(generator Generator, opts ...ServiceOption) *Service {
	options := ServiceOptions{Name: "llm", MaxToolRounds: defaultMaxToolRounds}
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{generator: generator, options: options}
}

func (s *Service) Name() string { return s.options.Name }

func (s *Service) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if direction != events.Downstream {
		out.Push(ctx, event, direction)
		return
	}

	switch e := event.(type) {
	case events.ContextUpdate:
		if e.Conversation == nil {
			return
		}
		var tools []conversation.ToolSchema
		if s.options.Tools != nil {
			tools = e.Conversation.Tools()
		}
		s.generate(ctx, e.Conversation.Messages(), tools, out)
	case events.MessagesRequest:
		s.generate(ctx, e.Messages, nil, out)
	case events.InterruptionStarted, events.End, events.Cancel:
		s.stop()
		out.Push(ctx, event, direction)
	default:
		out.Push(ctx, event, direction)
	}
}

func (s *Service) stop() {
	s.mu.Lock()
	cancel, running := s.cancel, s.running
	s.cancel, s.running = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-running
}

func (s *Service) generate(ctx context.Context, messages []conversation.Message, tools []conversation.ToolSchema, out pipeline.Output) {
	s.stop()

	generationCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	running := make(chan struct{})

	s.mu.Lock()
	s.cancel, s.running = cancel, running
	s.mu.Unlock()

	go func() {
		defer close(running)
		defer cancel()
		s.respond(generationCtx, messages, tools, out)
	}()
}

// respond streams one response, running tool calls and regenerating until the
// model answers without calling a tool. A cancelled response is not closed
// with ResponseEnded.
func (s *Service) respond(ctx context.Context, messages []conversation.Message, tools []conversation.ToolSchema, out pipeline.Output) {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.service", s.options.Name),
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.tools", len(tools)),
	)
	serviceAttr := metric.WithAttributes(attribute.String("llm.service", s.options.Name))
	generationsStarted.Add(ctx, 1, serviceAttr)

	out.Push(ctx, events.NewResponseStarted(), events.Downstream)

	for round := 0; ; round++ {
		toolCalls, err := s.streamRound(ctx, messages, tools, out)
		if ctx.Err() != nil {
			generationsCancelled.Add(context.WithoutCancel(ctx), 1, serviceAttr)
			span.AddEvent("cancelled")
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("failed to generate response", "service", s.options.Name, "error", err)
			out.Push(ctx, events.NewError(fmt.Errorf("%s: %w", s.options.Name, err)), events.Downstream)
			break
		}
		if len(toolCalls) == 0 || s.options.Tools == nil {
			break
		}
		if round+1 >= s.options.MaxToolRounds {
			logger.Warn("tool call limit reached, ending response", "service", s.options.Name, "rounds", round+1)
			break
		}

		messages = append(messages, conversation.Message{Role: conversation.RoleAssistant, ToolCalls: toolCalls})
		for _, call := range toolCalls {
			result := s.callTool(ctx, call, out)
			messages = append(messages, conversation.ToolResultMessage(call.ID, call.Name, result))
		}
		if ctx.Err() != nil {
			generationsCancelled.Add(context.WithoutCancel(ctx), 1, serviceAttr)
			return
		}
	}

	out.Push(ctx, events.NewResponseEnded(), events.Downstream)
}

func (s *Service) streamRound(ctx context.Context, messages []conversation.Message, tools []conversation.ToolSchema, out pipeline.Output) ([]conversation.ToolCall, error) {
	var toolCalls []conversation.ToolCall
	requestedAt := time.Now()
	firstToken := true

	for chunk, err := range s.generator.Stream(ctx, messages, tools).Chunks(ctx) {
		if err != nil {
			return toolCalls, err
		}

		switch c := chunk.(type) {
		case StreamContentChunk:
			if c.Content() == "" {
				continue
			}
			if firstToken {
				firstToken = false
				timeToFirstToken.Record(ctx, time.Since(requestedAt).Seconds(),
					metric.WithAttributes(attribute.String("llm.service", s.options.Name)))
			}
			out.Push(ctx, events.NewGeneratedText(c.Content()), events.Downstream)
		case StreamToolCallChunk:
			toolCalls = append(toolCalls, c.ToolCall())
		case StreamUsageChunk:
			logger.Debug("generation usage", "service", s.options.Name,
				"input_tokens", c.Usage().InputTokens, "output_tokens", c.Usage().OutputTokens)
		}
	}
	return toolCalls, nil
}

func (s *Service) callTool(ctx context.Context, call conversation.ToolCall, out pipeline.Output) string {
	ctx, span := tracer.Start(ctx, "call tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	out.Push(ctx, events.NewFunctionCallStarted(call.ID, call.Name, call.Arguments), events.Downstream)
	toolCallsExecuted.Add(ctx, 1, metric.WithAttributes(attribute.String("tool.name", call.Name)))

	result, err := s.options.Tools.Call(ctx, call.Name, call.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, context.Canceled) {
			logger.Warn("tool call failed", "tool", call.Name, "error", err)
		}
		result = fmt.Sprintf("error: %v", err)
	}

	out.Push(ctx, events.NewFunctionCallResult(call.ID, call.Name, result, err), events.Downstream)
	return result
}
