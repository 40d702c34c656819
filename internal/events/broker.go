// Package events implements the in-process publish/subscribe fan-out of job
// state transitions described in spec §4.11, grounded on bitriver-live's
// internal/chat/queue.go memoryQueue: non-blocking publish, per-subscriber
// buffered channel, detach-on-disconnect.
package events

import (
	"sync"
)

// Kind enumerates the job-state transition events the broker carries.
type Kind string

const (
	KindJobCreated  Kind = "job:created"
	KindJobStarted  Kind = "job:started"
	KindJobProgress Kind = "job:progress"
	KindJobComplete Kind = "job:completed"
	KindJobError    Kind = "job:error"
)

// Event is one state transition, offered to every subscriber without blocking.
type Event struct {
	Kind  Kind
	JobID string
	Data  map[string]interface{}
}

// Subscription is a live registration; callers must Close it when done.
type Subscription struct {
	ch     chan Event
	closed bool
	once   sync.Once
	broker *Broker
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the broker. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

// Broker is the process-wide event fan-out. A single mutex guards the
// subscriber set; Publish is non-blocking (a full subscriber buffer drops
// the event rather than stalling the publishing goroutine).
type Broker struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBroker builds an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscription with a buffered channel of the
// given capacity.
func (b *Broker) Subscribe(bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	sub := &Subscription{ch: make(chan Event, bufferSize), broker: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers event to every live subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event rather
// than stalling the publisher.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			// drop: slow consumer; the publisher never blocks on any one
			// subscriber
		}
	}
}

// SubscriberCount reports the live subscriber count, useful for diagnostics.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
