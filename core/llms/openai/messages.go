package openai

import (
	"github.com/koscakluka/xperto/core/conversation"
	openai "github.com/openai/openai-go/v3"
)

func toMessages(messages []conversation.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case conversation.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Text()))
		case conversation.RoleUser:
			converted = append(converted, openai.UserMessage(msg.Text()))
		case conversation.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				converted = append(converted, openai.AssistantMessage(msg.Text()))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if text := msg.Text(); text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				})
			}
			converted = append(converted, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case conversation.RoleTool:
			converted = append(converted, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		default:
			logger.Warn("skipping message with unknown role", "role", msg.Role)
		}
	}
	return converted
}

func toTools(schemas []conversation.ToolSchema) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(schemas))
	for _, schema := range schemas {
		definition := openai.FunctionDefinitionParam{
			Name:       schema.Function.Name,
			Parameters: openai.FunctionParameters(schema.Function.Parameters),
		}
		if schema.Function.Description != "" {
			definition.Description = openai.String(schema.Function.Description)
		}
		tools = append(tools, openai.ChatCompletionFunctionTool(definition))
	}
	return tools
}
