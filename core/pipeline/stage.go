package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

type sink func(ctx context.Context, event events.Event, direction events.Direction)

func discard(context.Context, events.Event, events.Direction) {}

// stage runs one processor on its own goroutine, fed by an ordered queue.
type stage struct {
	name      string
	processor Processor
	queue     *eventQueue

	prev sink
	next sink
}

// composite processors own nested stages that have to be started together
// with the stage wrapping them.
type composite interface {
	start(ctx context.Context, g *errgroup.Group, out Output)
}

// Named lets a processor choose the name used in logs and metrics.
type Named interface {
	Name() string
}

func newStage(processor Processor) *stage {
	name := fmt.Sprintf("%T", processor)
	if named, ok := processor.(Named); ok {
		name = named.Name()
	}
	return &stage{
		name:      name,
		processor: processor,
		queue:     newEventQueue(),
		prev:      discard,
		next:      discard,
	}
}

func (s *stage) Push(_ context.Context, event events.Event, direction events.Direction) {
	s.queue.push(event, direction)
}

type stageOutput struct{ s *stage }

func (o stageOutput) Push(ctx context.Context, event events.Event, direction events.Direction) {
	if direction == events.Downstream {
		o.s.next(ctx, event, direction)
		return
	}
	o.s.prev(ctx, event, direction)
}

func (s *stage) start(ctx context.Context, g *errgroup.Group) {
	out := stageOutput{s: s}
	if c, ok := s.processor.(composite); ok {
		c.start(ctx, g, out)
	}
	g.Go(func() error {
		s.run(ctx, out)
		return nil
	})
}

func (s *stage) run(ctx context.Context, out Output) {
	for {
		item, ok := s.queue.pop(ctx)
		if !ok {
			return
		}

		queueTime.Record(ctx, time.Since(item.queuedAt).Seconds(), metric.WithAttributes(stageAttribute(s.name)))
		s.process(ctx, item, out)

		if item.direction == events.Downstream && events.IsTerminal(item.event) {
			logger.Debug("stage stopped", "stage", s.name, "event", item.event.Kind())
			return
		}
	}
}

func (s *stage) process(ctx context.Context, item queueItem, out Output) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%s stage panicked: %v", s.name, recovered)
			logger.Error("stage panicked", "stage", s.name, "event", item.event.Kind(), "error", err)
			stagePanics.Add(ctx, 1, metric.WithAttributes(stageAttribute(s.name)))
			out.Push(ctx, events.NewError(err), events.Downstream)
			if events.IsLifecycle(item.event) {
				out.Push(ctx, item.event, item.direction)
			}
		}
	}()

	s.processor.Process(ctx, item.event, item.direction, out)
}
