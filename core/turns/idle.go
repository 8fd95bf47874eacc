package turns

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
	"github.com/koscakluka/xperto/core/notifier"
	"github.com/koscakluka/xperto/core/pipeline"
)

const DefaultUserIdleTimeout = 5 * time.Second

type IdleWatchdogOptions struct {
	Timeout time.Duration
}

type IdleWatchdogOption func(*IdleWatchdogOptions)

func WithTimeout(timeout time.Duration) IdleWatchdogOption {
	return func(o *IdleWatchdogOptions) {
		o.Timeout = timeout
	}
}

// IdleWatchdog releases the output gate when the user went quiet and no
// completeness verdict arrived in time, so a silent classifier can not stall
// the conversation.
type IdleWatchdog struct {
	notifier notifier.Notifier
	timeout  time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewIdleWatchdog(n notifier.Notifier, opts ...IdleWatchdogOption) *IdleWatchdog {
	options := IdleWatchdogOptions{Timeout: DefaultUserIdleTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	return &IdleWatchdog{notifier: n, timeout: options.Timeout}
}

func (w *IdleWatchdog) Name() string { return "user idle watchdog" }

func (w *IdleWatchdog) Process(ctx context.Context, event events.Event, direction events.Direction, out pipeline.Output) {
	switch e := event.(type) {
	case events.TranscriptionUpdate:
		if e.Final {
			w.arm(ctx)
		}
	case events.ContextUpdate, events.InterruptionEnded:
		w.arm(ctx)
	case events.UserStoppedSpeaking, events.ResponseStarted, events.GeneratedText,
		events.SpeechAudio, events.InterruptionStarted:
		w.disarm()
	case events.End, events.Cancel:
		w.disarm()
	default:
	}

	out.Push(ctx, event, direction)
}

// Armed reports whether the watchdog is counting down.
func (w *IdleWatchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

func (w *IdleWatchdog) arm(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		if w.timer != timer {
			w.mu.Unlock()
			return
		}
		w.timer = nil
		w.mu.Unlock()

		idleTimeouts.Add(context.WithoutCancel(ctx), 1)
		logger.Info("user idle, releasing response", "timeout", w.timeout)
		w.notifier.Notify()
	})
	w.timer = timer
}

func (w *IdleWatchdog) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
