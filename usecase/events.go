package usecase

import (
	"sync"
	"sync/atomic"
)

// event is anything the controller loop processes: intents and adapter callbacks
type event interface{}

const (
	intentPending int32 = iota
	intentClaimed
	intentAbandoned
)

// intentEvent is applied only if the loop claims it before the caller gives up
type intentEvent struct {
	name  string
	apply func() error
	reply chan error
	claim *atomic.Int32
}

// sourceStartedEvent reports the outcome of a Start run off the loop
type sourceStartedEvent struct {
	gen      uint64
	language string
	err      error
}

type transcriptEvent struct {
	gen     uint64
	text    string
	isFinal bool
}

type sourceErrorEvent struct {
	gen uint64
	err error
}

type sourceEndEvent struct {
	gen uint64
}

type chatResultEvent struct {
	gen   uint64
	reply string
	err   error
}

type speechStartEvent struct {
	gen uint64
}

type speechEndEvent struct {
	gen uint64
}

type speechErrorEvent struct {
	gen uint64
	err error
}

// eventQueue is an unbounded FIFO; push never blocks
type eventQueue struct {
	mu     sync.Mutex
	items  []event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}
