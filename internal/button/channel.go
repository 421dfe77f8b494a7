package button

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Receiver.WaitFor once the sender has gone
	// and no queued event matched.
	ErrClosed = errors.New("button: event channel closed")

	// ErrReceiverClosed is returned by Sender.Send after the receiver closed.
	ErrReceiverClosed = errors.New("button: event receiver closed")
)

// channel is an unbounded FIFO shared by one Sender and one Receiver.
type channel struct {
	mu             sync.Mutex
	queue          []Event
	ready          chan struct{} // capacity 1; signalled on send and close
	senderClosed   bool
	receiverClosed bool
}

// Sender is the producing end of an event channel.
type Sender struct {
	c *channel
}

// Receiver is the consuming end of an event channel.
type Receiver struct {
	c *channel
}

// NewChannel returns the two ends of an unbounded, ordered event channel
// for exactly one producer and one consumer.
func NewChannel() (*Sender, *Receiver) {
	c := &channel{ready: make(chan struct{}, 1)}
	return &Sender{c: c}, &Receiver{c: c}
}

func (c *channel) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Send queues ev. It never blocks.
func (s *Sender) Send(ev Event) error {
	s.c.mu.Lock()
	if s.c.receiverClosed {
		s.c.mu.Unlock()
		return ErrReceiverClosed
	}
	s.c.queue = append(s.c.queue, ev)
	s.c.mu.Unlock()
	s.c.signal()
	return nil
}

// Close marks the producer as gone. Queued events remain readable.
func (s *Sender) Close() {
	s.c.mu.Lock()
	s.c.senderClosed = true
	s.c.mu.Unlock()
	s.c.signal()
}

// pop removes the oldest event. Reports whether one was queued and whether
// the sender has closed.
func (c *channel) pop() (ev Event, ok, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return 0, false, c.senderClosed
	}
	ev = c.queue[0]
	c.queue[0] = 0
	c.queue = c.queue[1:]
	return ev, true, c.senderClosed
}

// Poll returns the oldest queued event without blocking.
func (r *Receiver) Poll() (Event, bool) {
	ev, ok, _ := r.c.pop()
	return ev, ok
}

// WaitFor blocks until want is received. Every other event dequeued while
// waiting is dropped, not requeued. It returns ErrClosed if the sender closes
// before want arrives. There is no timeout.
func (r *Receiver) WaitFor(want Event) error {
	for {
		ev, ok, closed := r.c.pop()
		if ok {
			if ev == want {
				return nil
			}
			continue
		}
		if closed {
			return ErrClosed
		}
		<-r.c.ready
	}
}

// Drain discards every queued event and returns how many were dropped.
func (r *Receiver) Drain() int {
	r.c.mu.Lock()
	n := len(r.c.queue)
	r.c.queue = nil
	r.c.mu.Unlock()
	return n
}

// Len returns the number of queued events.
func (r *Receiver) Len() int {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return len(r.c.queue)
}

// Close detaches the consumer; later sends fail with ErrReceiverClosed.
func (r *Receiver) Close() {
	r.c.mu.Lock()
	r.c.receiverClosed = true
	r.c.queue = nil
	r.c.mu.Unlock()
}
