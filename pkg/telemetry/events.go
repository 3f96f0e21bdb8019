package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a store lifecycle event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Source is the part of the store layer that published the event.
	Source string `json:"source"`

	Model    string `json:"model,omitempty"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
	Level    string `json:"level"`

	Data map[string]any `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeStoreLoaded     = "store.loaded"
	EventTypeStoreLoadFailed = "store.load_failed"
	EventTypeStoreWiped      = "store.wiped"
	EventTypeModelsSaved     = "store.saved"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber receives delivered events. Subscribers of an async
// publisher run on the delivery goroutine.
type EventSubscriber func(event Event)

// EventFilter selects the events a subscriber receives.
type EventFilter func(event Event) bool

// EventPublisher delivers store events to subscribers, inline or through a
// buffered delivery goroutine.
type EventPublisher struct {
	config EventsConfig

	mu          sync.RWMutex
	subscribers []subscriberEntry

	// sendMu guards stopped and the close of buffer.
	sendMu  sync.RWMutex
	stopped bool
	buffer  chan Event
	done    chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher builds a publisher for cfg. An async publisher starts
// its delivery goroutine here and stops it in Shutdown.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{config: cfg}
	if !cfg.Enabled || !cfg.EnableAsync {
		return ep, nil
	}

	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}
	if ep.config.MaxBatchSize <= 0 {
		ep.config.MaxBatchSize = 1
	}
	ep.buffer = make(chan Event, cfg.BufferSize)
	ep.done = make(chan struct{})
	go ep.run()

	return ep, nil
}

// NewNopEventPublisher returns a disabled publisher.
func NewNopEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

// Enabled reports whether events are delivered.
func (ep *EventPublisher) Enabled() bool {
	return ep != nil && ep.config.Enabled
}

// Publish stamps event with an ID and a timestamp when missing and hands it
// to the subscribers. An async publisher drops the event and returns an
// error when its buffer is full.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.Enabled() {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.sendMu.RLock()
	defer ep.sendMu.RUnlock()

	if ep.stopped {
		return fmt.Errorf("event publisher stopped")
	}
	if ep.buffer == nil {
		ep.deliver(event)
		return nil
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, %s dropped", event.Type)
	}
}

// PublishStoreLoaded reports a successful load.
func (ep *EventPublisher) PublishStoreLoaded(model, location string, attempts int, recovered bool) error {
	return ep.Publish(Event{
		Type:     EventTypeStoreLoaded,
		Source:   "container",
		Model:    model,
		Location: location,
		Message:  fmt.Sprintf("Store for %s loaded after %d attempt(s)", model, attempts),
		Level:    EventLevelInfo,
		Data: map[string]any{
			"attempts":  attempts,
			"recovered": recovered,
		},
	})
}

// PublishStoreLoadFailed reports a load that ended in a PersistenceError.
func (ep *EventPublisher) PublishStoreLoadFailed(model, location, kind, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeStoreLoadFailed,
		Source:   "container",
		Model:    model,
		Location: location,
		Message:  fmt.Sprintf("Store for %s failed to load: %s", model, reason),
		Level:    EventLevelError,
		Data: map[string]any{
			"kind":   kind,
			"reason": reason,
		},
	})
}

// PublishStoreWiped reports a store file removed during recovery or by an
// explicit wipe.
func (ep *EventPublisher) PublishStoreWiped(model, location, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeStoreWiped,
		Source:   "container",
		Model:    model,
		Location: location,
		Message:  fmt.Sprintf("Store for %s wiped: %s", model, reason),
		Level:    EventLevelWarning,
		Data: map[string]any{
			"reason": reason,
		},
	})
}

// PublishModelsSaved reports a committed save of count values.
func (ep *EventPublisher) PublishModelsSaved(model string, count int) error {
	return ep.Publish(Event{
		Type:    EventTypeModelsSaved,
		Source:  "access",
		Model:   model,
		Message: fmt.Sprintf("Saved %d models", count),
		Level:   EventLevelInfo,
		Data: map[string]any{
			"count": count,
		},
	})
}

// Subscribe registers subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// run delivers buffered events in batches of up to MaxBatchSize until the
// buffer is closed and drained.
func (ep *EventPublisher) run() {
	defer close(ep.done)

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	for event := range ep.buffer {
		batch = ep.fill(append(batch[:0], event))
		for _, e := range batch {
			ep.deliver(e)
		}
	}
}

// fill adds queued events to batch without blocking.
func (ep *EventPublisher) fill(batch []Event) []Event {
	for len(batch) < cap(batch) {
		select {
		case event, ok := <-ep.buffer:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (ep *EventPublisher) deliver(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter == nil || entry.filter(event) {
			entry.subscriber(event)
		}
	}
}

// Shutdown stops the publisher. An async publisher first delivers
// everything buffered, or gives up when ctx is done. Publishing afterwards
// fails.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.Enabled() {
		return nil
	}

	ep.sendMu.Lock()
	if !ep.stopped {
		ep.stopped = true
		if ep.buffer != nil {
			close(ep.buffer)
		}
	}
	ep.sendMu.Unlock()

	if ep.done == nil {
		return nil
	}

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

// FilterByModel accepts the events of one model.
func FilterByModel(model string) EventFilter {
	return func(event Event) bool {
		return event.Model == model
	}
}

// FilterByType accepts events of the given types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(event Event) bool {
		return set[event.Type]
	}
}
