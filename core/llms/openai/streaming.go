package openai

import (
	"context"
	"fmt"

	"github.com/koscakluka/xperto/core/conversation"
	"github.com/koscakluka/xperto/core/llms"
	openai "github.com/openai/openai-go/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Stream struct {
	client *Client
	params openai.ChatCompletionNewParams
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", s.client.model),
			attribute.Int("request.messages", len(s.params.Messages)),
			attribute.Int("request.tools", len(s.params.Tools)),
		)

		stream := s.client.api.Chat.Completions.NewStreaming(ctx, s.params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		var finishReason *string
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				if choice.FinishReason != "" {
					reason := choice.FinishReason
					finishReason = &reason
				}
				if choice.Delta.Content != "" {
					if !yield(llms.NewContentChunk(choice.Delta.Content, finishReason), nil) {
						return
					}
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				span.SetAttributes(
					attribute.Int64("usage.input", chunk.Usage.PromptTokens),
					attribute.Int64("usage.output", chunk.Usage.CompletionTokens),
					attribute.Int64("usage.total", chunk.Usage.TotalTokens),
				)
				usage := llms.Usage{
					InputTokens:     int(chunk.Usage.PromptTokens),
					OutputTokens:    int(chunk.Usage.CompletionTokens),
					ReasoningTokens: int(chunk.Usage.CompletionTokensDetails.ReasoningTokens),
					TotalTokens:     int(chunk.Usage.TotalTokens),
				}
				if !yield(llms.NewUsageChunk(usage, finishReason), nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			err = fmt.Errorf("error reading streamed response: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}

		if len(acc.Choices) == 0 {
			return
		}
		var toolNames []string
		for _, call := range acc.Choices[0].Message.ToolCalls {
			toolNames = append(toolNames, call.Function.Name)
			toolCall := conversation.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			}
			if !yield(llms.NewToolCallChunk(toolCall, finishReason), nil) {
				return
			}
		}
		span.SetAttributes(attribute.StringSlice("response.tool_calls", toolNames))
	}
}
