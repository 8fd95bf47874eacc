package turns

import (
	"context"
	"sync"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
)

type OutputGateOptions struct {
	StartOpen bool
}

type OutputGateOption func(*OutputGateOptions)

// StartOpen lets the first response through without waiting for a signal,
// used when the bot speaks first.
func StartOpen() OutputGateOption {
	return func(o *OutputGateOptions) {
		o.StartOpen = true
	}
}

type bufferedEvent struct {
	event     events.Event
	direction events.Direction
}

// OutputGate holds back speculative downstream output until the notifier
// says the user's turn is over. An interruption closes the gate and throws
// away everything it was holding.
type OutputGate struct {
	notifier notifier.Notifier

	mu     sync.Mutex
	open   bool
	buffer []bufferedEvent
	out    pipeline.Output

	cancelRelease context.CancelFunc
	releaseDone   chan struct{}
}

func NewOutputGate(n notifier.Notifier, opts ...OutputGateOption) *OutputGate {
	options := OutputGateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &OutputGate{notifier: n, open: options.StartOpen}
}

func (g *OutputGate) Name() string { return "output gate" }

// Open reports whether downstream events currently pass straight through.
func (g *OutputGate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Buffered returns the number of events held back.
func (g *OutputGate) Buffered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buffer)
}

func (g *OutputGate) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	if events.IsSystem(event) {
		switch event.(type) {
		case events.Start:
			g.start(ctx, out)
		case events.End, events.Cancel:
			g.stop()
		case events.InterruptionStarted:
			g.interrupt(ctx)
		}
		out.Push(ctx, event, direction)
		return
	}

	if events.IsFunctionCall(event) || direction != events.Downstream {
		out.Push(ctx, event, direction)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		out.Push(ctx, event, direction)
		return
	}
	g.buffer = append(g.buffer, bufferedEvent{event: event, direction: direction})
}

func (g *OutputGate) interrupt(ctx context.Context) {
	g.mu.Lock()
	discarded := len(g.buffer)
	g.buffer = nil
	g.open = false
	g.mu.Unlock()

	if discarded > 0 {
		gateDiscardedEvents.Add(ctx, int64(discarded))
		logger.Debug("interruption discarded buffered output", "events", discarded)
	}
}

func (g *OutputGate) start(ctx context.Context, out pipeline.Output) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out = out
	if g.cancelRelease != nil {
		return
	}

	releaseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	g.cancelRelease = cancel
	g.releaseDone = done

	go func() {
		defer close(done)
		g.releaseLoop(releaseCtx)
	}()
}

func (g *OutputGate) stop() {
	g.mu.Lock()
	cancel, done := g.cancelRelease, g.releaseDone
	g.cancelRelease, g.releaseDone = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (g *OutputGate) releaseLoop(ctx context.Context) {
	for {
		if err := g.notifier.Wait(ctx); err != nil {
			return
		}
		g.release(ctx)
	}
}

func (g *OutputGate) release(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.open = true
	buffered := g.buffer
	g.buffer = nil

	gateReleases.Add(ctx, 1)
	gateReleasedEvents.Add(ctx, int64(len(buffered)))

	warned := false
	for _, item := range buffered {
		if ctx.Err() != nil && !warned {
			logger.Warn("output gate stopped while flushing, finishing flush", "remaining", len(buffered))
			warned = true
		}
		g.out.Push(ctx, item.event, item.direction)
	}
}
