package pipeline

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const defaultStopTimeout = 5 * time.Second

type TaskOptions struct {
	// IdleTimeout cancels the task when none of IdleEventKinds reached the
	// end of the pipeline for this long. Zero disables it.
	IdleTimeout    time.Duration
	IdleEventKinds []events.Kind

	// StopTimeout bounds how long Run waits for a terminal event to drain
	// through the stages after its context is done.
	StopTimeout time.Duration

	Observers []func(events.Event)
}

type TaskOption func(*TaskOptions)

func WithIdleTimeout(timeout time.Duration, kinds ...events.Kind) TaskOption {
	return func(o *TaskOptions) {
		o.IdleTimeout = timeout
		if len(kinds) > 0 {
			o.IdleEventKinds = kinds
		}
	}
}

func WithStopTimeout(timeout time.Duration) TaskOption {
	return func(o *TaskOptions) {
		o.StopTimeout = timeout
	}
}

// WithObserver registers a callback for every event leaving the tail of the
// pipeline. Observers run on the tail stage goroutine and must not block.
func WithObserver(observer func(events.Event)) TaskOption {
	return func(o *TaskOptions) {
		o.Observers = append(o.Observers, observer)
	}
}

// Task runs a pipeline from Start to End or Cancel.
type Task struct {
	pipeline *Pipeline
	options  TaskOptions

	mu      sync.Mutex
	ctx     context.Context
	started bool
	pending []events.Event

	activity   chan struct{}
	finished   chan struct{}
	finishOnce sync.Once
	cancelOnce sync.Once
}

func NewTask(p *Pipeline, opts ...TaskOption) *Task {
	options := TaskOptions{
		IdleEventKinds: []events.Kind{events.KindSpeechAudio, events.KindResponseEnded},
		StopTimeout:    defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Task{
		pipeline: p,
		options:  options,
		activity: make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

// Queue pushes events downstream into the head of the pipeline. Events
// queued before Run are delivered right after Start.
func (t *Task) Queue(evts ...events.Event) {
	t.mu.Lock()
	if !t.started {
		t.pending = append(t.pending, evts...)
		t.mu.Unlock()
		return
	}
	ctx := t.ctx
	t.mu.Unlock()

	for _, event := range evts {
		t.pipeline.Push(ctx, event, events.Downstream)
	}
}

// End asks the pipeline to finish gracefully.
func (t *Task) End() {
	t.Queue(events.NewEnd())
}

// Cancel asks the pipeline to stop. Only the first call has an effect.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		t.Queue(events.NewCancel())
	})
}

// Run starts every stage, pushes Start and blocks until End or Cancel has
// passed through the whole pipeline. When ctx is done the task is cancelled
// and the stages get StopTimeout to drain before they are stopped.
func (t *Task) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run pipeline task")
	defer span.End()

	stageCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	g := &errgroup.Group{}
	t.pipeline.setEnds(t.onDownstream, t.onUpstream)
	t.pipeline.start(stageCtx, g)

	// Pushing only enqueues, so Start and the pending events go in under the
	// lock and no concurrent Queue can overtake them.
	t.mu.Lock()
	t.ctx = stageCtx
	t.started = true
	t.pipeline.Push(stageCtx, events.NewStart(), events.Downstream)
	for _, event := range t.pending {
		t.pipeline.Push(stageCtx, event, events.Downstream)
	}
	t.pending = nil
	t.mu.Unlock()

	if t.options.IdleTimeout > 0 {
		go t.watchIdle(stageCtx)
	}

	var runErr error
	select {
	case <-t.finished:
	case <-ctx.Done():
		runErr = ctx.Err()
		logger.Info("pipeline context done, cancelling", "reason", runErr)
		t.Cancel()
		select {
		case <-t.finished:
		case <-time.After(t.options.StopTimeout):
			logger.Warn("pipeline did not drain in time, stopping stages", "timeout", t.options.StopTimeout)
			span.SetAttributes(attribute.Bool("pipeline.forced_stop", true))
		}
	}

	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}

func (t *Task) onDownstream(ctx context.Context, event events.Event, _ events.Direction) {
	for _, observer := range t.options.Observers {
		observer(event)
	}

	if slices.Contains(t.options.IdleEventKinds, event.Kind()) {
		select {
		case t.activity <- struct{}{}:
		default:
		}
	}

	switch e := event.(type) {
	case events.End, events.Cancel:
		t.finishOnce.Do(func() { close(t.finished) })
	case events.Error:
		logger.Error("pipeline error", "error", e.Err, "fatal", e.Fatal)
		if e.Fatal {
			t.Cancel()
		}
	default:
	}
}

func (t *Task) onUpstream(_ context.Context, event events.Event, _ events.Direction) {
	switch e := event.(type) {
	case events.Error:
		logger.Error("pipeline error", "error", e.Err, "fatal", e.Fatal)
		if e.Fatal {
			t.Cancel()
		}
	default:
		logger.Debug("upstream event reached pipeline head", "event", event.Kind())
	}
}

func (t *Task) watchIdle(ctx context.Context) {
	timer := time.NewTimer(t.options.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.finished:
			return
		case <-t.activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(t.options.IdleTimeout)
		case <-timer.C:
			logger.Warn("pipeline idle, cancelling", "timeout", t.options.IdleTimeout)
			t.Cancel()
			return
		}
	}
}
