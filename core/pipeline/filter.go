package pipeline

import (
	"context"

	"github.com/koscakluka/xperto/core/events"
)

// Filter forwards the downstream events allow accepts. Upstream events and
// lifecycle events always pass.
type Filter struct {
	name  string
	allow func(events.Event) bool
}

func NewFilter(name string, allow func(events.Event) bool) *Filter {
	return &Filter{name: name, allow: allow}
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Process(ctx context.Context, event events.Event, direction events.Direction, out Output) {
	if direction != events.Downstream || events.IsLifecycle(event) || f.allow(event) {
		out.Push(ctx, event, direction)
	}
}

// Block returns a predicate rejecting the given kinds.
func Block(kinds ...events.Kind) func(events.Event) bool {
	return func(event events.Event) bool {
		for _, kind := range kinds {
			if event.Kind() == kind {
				return false
			}
		}
		return true
	}
}

// Only returns a predicate accepting just the given kinds.
func Only(kinds ...events.Kind) func(events.Event) bool {
	return func(event events.Event) bool {
		for _, kind := range kinds {
			if event.Kind() == kind {
				return true
			}
		}
		return false
	}
}
