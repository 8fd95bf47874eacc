package conversation

import (
	"sync"

	"github.com/jinzhu/copier"
)

// State is the live conversation of a single session. It is owned by the
// pipeline: aggregators append to it, everything else reads it or takes a
// Snapshot.
type State struct {
	mu       sync.RWMutex
	messages []Message
	tools    []ToolSchema
}

func New(messages ...Message) *State {
	return &State{messages: clone(messages)}
}

func (s *State) Append(messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, clone(messages)...)
}

// Reset replaces every message at once. It is the only operation that
// shrinks the conversation.
func (s *State) Reset(messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = clone(messages)
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Messages returns a copy of the messages.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.messages)
}

// RValues iterates messages newest first over a copy taken at call time.
func (s *State) RValues(yield func(Message) bool) {
	messages := s.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if !yield(messages[i]) {
			return
		}
	}
}

func (s *State) SetTools(tools []ToolSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = cloneTools(tools)
}

func (s *State) Tools() []ToolSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTools(s.tools)
}

// Snapshot is a point-in-time deep copy of the conversation. Messages and
// tools are copied in the same critical section so a snapshot never mixes
// state from before and after a Reset.
type Snapshot struct {
	Messages []Message
	Tools    []ToolSchema
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Messages: clone(s.messages), Tools: cloneTools(s.tools)}
}

func clone(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	cloned := make([]Message, 0, len(messages))
	if err := copier.CopyWithOption(&cloned, messages, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy conversation messages", "error", err)
		return append(cloned[:0], messages...)
	}
	return cloned
}

func cloneTools(tools []ToolSchema) []ToolSchema {
	if tools == nil {
		return nil
	}
	cloned := make([]ToolSchema, 0, len(tools))
	if err := copier.CopyWithOption(&cloned, tools, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy conversation tools", "error", err)
		return append(cloned[:0], tools...)
	}
	return cloned
}
