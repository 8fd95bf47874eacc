package llms

import (
	"context"

	"github.com/koscakluka/xperto/core/conversation"
)

// Stream is a lazily started generation. The request is sent when Chunks is
// ranged over and stops when the loop breaks or ctx is done.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamToolCallChunk carries one complete tool call. Providers that stream
// tool call arguments in fragments assemble them before yielding.
type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() conversation.ToolCall
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}

type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
	TotalTokens     int

	// QueueTime and TotalTime are reported by some providers, in seconds.
	//
	// Note: This might be just an approximation.
	QueueTime float64
	TotalTime float64
}

type ContentChunk struct {
	finishReason *string
	content      string
}

func NewContentChunk(content string, finishReason *string) ContentChunk {
	return ContentChunk{content: content, finishReason: finishReason}
}

func (c ContentChunk) FinishReason() *string { return c.finishReason }

func (c ContentChunk) Content() string { return c.content }

type ToolCallChunk struct {
	finishReason *string
	toolCall     conversation.ToolCall
}

func NewToolCallChunk(toolCall conversation.ToolCall, finishReason *string) ToolCallChunk {
	return ToolCallChunk{toolCall: toolCall, finishReason: finishReason}
}

func (c ToolCallChunk) FinishReason() *string { return c.finishReason }

func (c ToolCallChunk) ToolCall() conversation.ToolCall { return c.toolCall }

type UsageChunk struct {
	finishReason *string
	usage        Usage
}

func NewUsageChunk(usage Usage, finishReason *string) UsageChunk {
	return UsageChunk{usage: usage, finishReason: finishReason}
}

func (c UsageChunk) FinishReason() *string { return c.finishReason }

func (c UsageChunk) Usage() Usage { return c.usage }
