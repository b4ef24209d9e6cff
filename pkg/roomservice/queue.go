package roomservice

import "sync"

// eventQueue decouples SDK callbacks from the consumer. It never drops
// and never blocks the producer for longer than a hand-off.
type eventQueue struct {
	mu     sync.Mutex
	closed bool

	in   chan Event
	out  chan Event
	done <-chan struct{}
}

func (q *eventQueue) push(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	select {
	case q.in <- evt:
	case <-q.done:
	}
}

// close stops accepting events; already queued events are still delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

func (q *eventQueue) run() {
	defer close(q.out)

	var pending []Event
	in := q.in

	for {
		if in == nil && len(pending) == 0 {
			return
		}

		var (
			out  chan<- Event
			next Event
		)
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}

		select {
		case <-q.done:
			return
		case evt, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, evt)
		case out <- next:
			pending[0] = nil
			pending = pending[1:]
		}
	}
}

func newEventQueue(done <-chan struct{}) *eventQueue {
	q := &eventQueue{
		in:   make(chan Event),
		out:  make(chan Event),
		done: done,
	}
	go q.run()
	return q
}
