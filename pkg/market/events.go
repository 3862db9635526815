package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Event is one published transition. Events are best-effort: Redis Pub/Sub
// delivers at most once and nothing is replayed.
type Event struct {
	Type        string                 `json:"type"` // e.g. "application.accepted"
	Kind        EntityKind             `json:"kind"`
	EntityID    string                 `json:"entity_id"`
	ActorRef    string                 `json:"actor_ref,omitempty"`
	Recipients  []string               `json:"recipients,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	TimestampMs int64                  `json:"timestamp_ms"`
}

// PublishEvent publishes an event to nest:{instance}:events.
func (c *Client) PublishEvent(ctx context.Context, e *Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, EventsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// EventSubscription represents an active Pub/Sub subscription to transition events.
// Caller must call Close() when done to clean up resources.
type EventSubscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of transition events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *EventSubscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors; malformed messages are skipped.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to transition events for this instance.
// Events are delivered on a buffered channel (size 10).
func (c *Client) SubscribeEvents(ctx context.Context) (*EventSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no event published after
	// return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
