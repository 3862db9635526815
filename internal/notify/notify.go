// Package notify fans transition events out to interested parties. Delivery
// is asynchronous, ordered and best-effort: a failed publish is logged and
// never fails or blocks the transition that produced it.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Notifier receives every committed transition.
type Notifier interface {
	Notify(e *market.Event)
}

// DefaultQueueSize bounds the events a Publisher holds before dropping.
const DefaultQueueSize = 1024

// Publisher forwards events to the instance's Redis Pub/Sub channel. Events
// are published one at a time from a single queue, so subscribers see them
// in the order they were notified.
type Publisher struct {
	client  *market.Client
	timeout time.Duration
	queue   chan *market.Event
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a Publisher and starts its worker. Each publish gets
// its own timeout, detached from the request that produced the event.
func NewPublisher(client *market.Client, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &Publisher{
		client:  client,
		timeout: timeout,
		queue:   make(chan *market.Event, DefaultQueueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify queues e for publishing. A full queue drops the event.
func (p *Publisher) Notify(e *market.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.Printf("[Notify] Publisher stopped, dropping %s for %s %s", e.Type, e.Kind, e.EntityID)
		return
	}
	select {
	case p.queue <- e:
	default:
		log.Printf("[Notify] Queue full, dropping %s for %s %s", e.Type, e.Kind, e.EntityID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.client.PublishEvent(ctx, e); err != nil {
			log.Printf("[Notify] Failed to publish %s for %s %s: %v", e.Type, e.Kind, e.EntityID, err)
		}
		cancel()
	}
}

// Wait stops accepting events and blocks until the queued ones are
// published. Called on shutdown; later Notify calls are dropped.
func (p *Publisher) Wait() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

// Recorder keeps events in memory. Used by tests and by nestctl's one-shot
// sweep to report what happened.
type Recorder struct {
	mu     sync.Mutex
	events []*market.Event
}

// Notify records e.
func (r *Recorder) Notify(e *market.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []*market.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*market.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Fanout delivers each event to every wrapped Notifier.
type Fanout []Notifier

// Notify forwards e to each Notifier in order.
func (f Fanout) Notify(e *market.Event) {
	for _, n := range f {
		n.Notify(e)
	}
}

// Discard drops every event.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(*market.Event) {}

// NewEvent builds a transition event stamped at now.
func NewEvent(eventType string, kind market.EntityKind, entityID, actorRef string, now time.Time, recipients ...string) *market.Event {
	return &market.Event{
		Type:        eventType,
		Kind:        kind,
		EntityID:    entityID,
		ActorRef:    actorRef,
		Recipients:  recipients,
		Data:        map[string]interface{}{},
		TimestampMs: now.UnixMilli(),
	}
}
