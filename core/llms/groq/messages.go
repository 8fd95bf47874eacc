package groq

import (
	"github.com/jinzhu/copier"
	"github.com/koscakluka/xperto/core/conversation"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func toMessages(conversationMessages []conversation.Message) []message {
	messages := make([]message, 0, len(conversationMessages))
	for _, msg := range conversationMessages {
		converted := message{Content: msg.Text()}
		switch msg.Role {
		case conversation.RoleSystem:
			converted.Role = messageRoleSystem
		case conversation.RoleUser:
			converted.Role = messageRoleUser
		case conversation.RoleAssistant:
			converted.Role = messageRoleAssistant
			for _, call := range msg.ToolCalls {
				converted.ToolCalls = append(converted.ToolCalls, toolCall{
					ID:       call.ID,
					Type:     "function",
					Function: toolCallFunction{Name: call.Name, Arguments: call.Arguments},
				})
			}
		case conversation.RoleTool:
			converted.Role = messageRoleTool
			converted.ToolCallID = msg.ToolCallID
		default:
			logger.Warn("skipping message with unknown role", "role", msg.Role)
			continue
		}
		messages = append(messages, converted)
	}
	return messages
}

func toTools(schemas []conversation.ToolSchema) []tool {
	if len(schemas) == 0 {
		return nil
	}
	var tools []tool
	if err := copier.CopyWithOption(&tools, schemas, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to convert tool schemas", "error", err)
		return nil
	}
	for i := range tools {
		if tools[i].Type == "" {
			tools[i].Type = "function"
		}
	}
	return tools
}
