package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"golang.org/x/sync/errgroup"
)

const (
	seenPruneSize = 256
	seenMaxAge    = time.Minute
)

// Parallel fans every event out to its branches and merges what they emit.
// Branches receive events in the same order but run independently.
//
// System events usually travel through several branches; they are forwarded
// once. End and Cancel are forwarded only after every branch has delivered
// them, so nothing a branch emits before stopping is lost.
type Parallel struct {
	branches []*Pipeline

	mu   sync.Mutex
	out  Output
	seen map[string]seenEvent
}

type seenEvent struct {
	count     int
	firstSeen time.Time
}

func NewParallel(branches ...[]Processor) *Parallel {
	p := &Parallel{seen: map[string]seenEvent{}}
	for _, processors := range branches {
		p.branches = append(p.branches, New(processors...))
	}
	return p
}

func (p *Parallel) Name() string { return "parallel" }

func (p *Parallel) start(ctx context.Context, g *errgroup.Group, out Output) {
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()

	for _, branch := range p.branches {
		branch.setEnds(p.merge, p.merge)
		branch.start(ctx, g)
	}
}

func (p *Parallel) Process(ctx context.Context, event events.Event, direction events.Direction, out Output) {
	if len(p.branches) == 0 {
		out.Push(ctx, event, direction)
		return
	}
	for _, branch := range p.branches {
		branch.Push(ctx, event, direction)
	}
}

func (p *Parallel) merge(ctx context.Context, event events.Event, direction events.Direction) {
	p.mu.Lock()
	out := p.out
	if !events.IsSystem(event) || event.ID() == "" {
		p.mu.Unlock()
		out.Push(ctx, event, direction)
		return
	}

	id := event.ID()
	seen, ok := p.seen[id]
	if !ok {
		seen.firstSeen = time.Now()
	}
	seen.count++

	forward := false
	if events.IsTerminal(event) {
		forward = seen.count == len(p.branches)
	} else {
		forward = seen.count == 1
	}

	if seen.count >= len(p.branches) {
		delete(p.seen, id)
	} else {
		p.seen[id] = seen
	}
	p.pruneSeen()
	p.mu.Unlock()

	if forward {
		out.Push(ctx, event, direction)
	} else if !events.IsTerminal(event) {
		duplicatesDropped.Add(ctx, 1)
	}
}

// pruneSeen drops entries for events that some branch filtered out and that
// will therefore never reach the full branch count.
func (p *Parallel) pruneSeen() {
	if len(p.seen) < seenPruneSize {
		return
	}
	for id, seen := range p.seen {
		if time.Since(seen.firstSeen) > seenMaxAge {
			delete(p.seen, id)
		}
	}
}
