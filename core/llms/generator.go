package llms

import (
	"context"

	"github.com/koscakluka/xperto/core/conversation"
)

// Generator produces streamed completions for a list of messages. Tools may
// be nil, in which case the model is not offered any.
type Generator interface {
	Stream(ctx context.Context, messages []conversation.Message, tools []conversation.ToolSchema) Stream
}

// ToolCaller executes the tool calls a model asks for.
type ToolCaller interface {
	Call(ctx context.Context, name, arguments string) (string, error)
}
