package session

import (
	"sync"

	"github.com/oshokin/alarm-clock/internal/ports"
)

// dispatcher delivers host events in posting order from one goroutine.
// Posting never blocks, so it is safe while holding the controller lock.
type dispatcher struct {
	sink ports.EventSink

	mu     sync.Mutex
	queue  []func(ports.EventSink)
	closed bool

	startOnce sync.Once
	wake      chan struct{}
	done      chan struct{}
}

func newDispatcher(sink ports.EventSink) *dispatcher {
	if sink == nil {
		sink = nopSink{}
	}

	return &dispatcher{
		sink: sink,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post queues fn; it reports false once the dispatcher has been closed.
func (d *dispatcher) post(fn func(ports.EventSink)) bool {
	return d.enqueue(fn, false)
}

// closeWith queues fn as the final event.
func (d *dispatcher) closeWith(fn func(ports.EventSink)) bool {
	return d.enqueue(fn, true)
}

func (d *dispatcher) enqueue(fn func(ports.EventSink), last bool) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return false
	}

	d.queue = append(d.queue, fn)
	d.closed = last
	d.mu.Unlock()

	d.startOnce.Do(func() {
		go d.run()
	})

	select {
	case d.wake <- struct{}{}:
	default:
	}

	return true
}

func (d *dispatcher) run() {
	for range d.wake {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			fn(d.sink)
		}

		if closed {
			close(d.done)

			return
		}
	}
}
