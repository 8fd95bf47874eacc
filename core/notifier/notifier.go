// Package notifier provides the wake primitive shared between the
// completeness classifier and the output gate.
package notifier

import (
	"context"
	"sync"
)

type Notifier interface {
	// Notify wakes every goroutine currently blocked in Wait. With no
	// waiters, a single wakeup is kept for the next Wait; repeated calls do
	// not accumulate.
	Notify()
	// Wait blocks until the next Notify or until ctx is done.
	Wait(ctx context.Context) error
}

type EventNotifier struct {
	mu      sync.Mutex
	wake    chan struct{}
	waiters int
	pending bool
}

func New() *EventNotifier {
	return &EventNotifier{wake: make(chan struct{})}
}

func (n *EventNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.waiters == 0 {
		n.pending = true
		return
	}
	close(n.wake)
	n.wake = make(chan struct{})
	n.waiters = 0
}

func (n *EventNotifier) Wait(ctx context.Context) error {
	n.mu.Lock()
	if n.pending {
		n.pending = false
		n.mu.Unlock()
		return nil
	}
	wake := n.wake
	n.waiters++
	n.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		n.mu.Lock()
		if n.wake == wake {
			n.waiters--
		}
		n.mu.Unlock()
		return ctx.Err()
	}
}
