package pipeline

import (
	"context"

	"github.com/koscakluka/xperto/core/events"
)

// Output forwards events to the neighbouring stages. Downstream events go to
// the next stage, upstream events to the previous one.
//
// The Output handed to a Processor stays valid for the lifetime of the
// pipeline and is safe for concurrent use, so processors may keep it and
// push from background goroutines.
type Output interface {
	Push(ctx context.Context, event events.Event, direction events.Direction)
}

// Processor handles the events reaching a single stage. Process is called
// from one goroutine at a time, in arrival order. Processors forward what
// they do not consume, and must always forward End and Cancel.
type Processor interface {
	Process(ctx context.Context, event events.Event, direction events.Direction, out Output)
}

type ProcessorFunc func(ctx context.Context, event events.Event, direction events.Direction, out Output)

func (f ProcessorFunc) Process(ctx context.Context, event events.Event, direction events.Direction, out Output) {
	f(ctx, event, direction, out)
}

type OutputFunc func(ctx context.Context, event events.Event, direction events.Direction)

func (f OutputFunc) Push(ctx context.Context, event events.Event, direction events.Direction) {
	f(ctx, event, direction)
}

// Passthrough forwards every event unchanged.
var Passthrough = ProcessorFunc(func(ctx context.Context, event events.Event, direction events.Direction, out Output) {
	out.Push(ctx, event, direction)
})
