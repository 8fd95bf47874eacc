package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/xperto/core/events"
)

type queueItem struct {
	event     events.Event
	direction events.Direction
	queuedAt  time.Time
}

// eventQueue is an unbounded FIFO. Pushing never blocks so a slow stage
// cannot stall the stage feeding it.
type eventQueue struct {
	mu           sync.Mutex
	items        []queueItem
	updateSignal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{updateSignal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(event events.Event, direction events.Direction) {
	q.mu.Lock()
	q.items = append(q.items, queueItem{event: event, direction: direction, queuedAt: time.Now()})
	q.mu.Unlock()
	q.signalUpdate()
}

// pop blocks until an item is available or ctx is done.
func (q *eventQueue) pop(ctx context.Context) (queueItem, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = queueItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return queueItem{}, false
		case <-q.updateSignal:
		}
	}
}

func (q *eventQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
