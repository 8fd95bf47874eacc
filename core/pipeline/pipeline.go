package pipeline

import (
	"context"

	"github.com/koscakluka/xperto/core/events"
	"golang.org/x/sync/errgroup"
)

// Pipeline is an ordered chain of stages. Each stage runs its processor on a
// dedicated goroutine, so every processor sees a strictly ordered view of
// the events reaching it.
type Pipeline struct {
	stages []*stage

	downstream sink
	upstream   sink
}

func New(processors ...Processor) *Pipeline {
	p := &Pipeline{downstream: discard, upstream: discard}
	for _, processor := range processors {
		p.stages = append(p.stages, newStage(processor))
	}

	for i, s := range p.stages {
		if i > 0 {
			s.prev = p.stages[i-1].Push
		} else {
			s.prev = p.emitUpstream
		}
		if i < len(p.stages)-1 {
			s.next = p.stages[i+1].Push
		} else {
			s.next = p.emitDownstream
		}
	}
	return p
}

// Push feeds an event into the pipeline: downstream events enter at the
// head, upstream events at the tail.
func (p *Pipeline) Push(ctx context.Context, event events.Event, direction events.Direction) {
	if len(p.stages) == 0 {
		if direction == events.Downstream {
			p.emitDownstream(ctx, event, direction)
		} else {
			p.emitUpstream(ctx, event, direction)
		}
		return
	}

	if direction == events.Downstream {
		p.stages[0].Push(ctx, event, direction)
	} else {
		p.stages[len(p.stages)-1].Push(ctx, event, direction)
	}
}

func (p *Pipeline) setEnds(downstream, upstream sink) {
	p.downstream = downstream
	p.upstream = upstream
}

func (p *Pipeline) start(ctx context.Context, g *errgroup.Group) {
	for _, s := range p.stages {
		s.start(ctx, g)
	}
}

func (p *Pipeline) emitDownstream(ctx context.Context, event events.Event, direction events.Direction) {
	p.downstream(ctx, event, direction)
}

func (p *Pipeline) emitUpstream(ctx context.Context, event events.Event, direction events.Direction) {
	p.upstream(ctx, event, direction)
}
