package events

import "github.com/koscakluka/xperto/core/conversation"

const (
	// KindContextUpdate identifies a full-context generation request.
	KindContextUpdate Kind = "llm.context_update"
	// KindMessagesRequest identifies an explicit message list generation
	// request.
	KindMessagesRequest Kind = "llm.messages_request"
)

// ContextUpdate carries the live conversation by reference. Receivers read
// it, only aggregators mutate it.
type ContextUpdate struct {
	base
	Conversation *conversation.State
}

func NewContextUpdate(state *conversation.State) ContextUpdate {
	return ContextUpdate{base: newBase(), Conversation: state}
}

func (ContextUpdate) Kind() Kind { return KindContextUpdate }

// MessagesRequest asks for a generation over Messages only, without tools.
type MessagesRequest struct {
	base
	Messages []conversation.Message
}

func NewMessagesRequest(messages []conversation.Message) MessagesRequest {
	return MessagesRequest{base: newBase(), Messages: messages}
}

func (MessagesRequest) Kind() Kind { return KindMessagesRequest }
