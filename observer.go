package declwire

import (
	"context"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer receives component lifecycle events. Observers register with a
// Subject and are notified synchronously; handlers should return quickly.
type Observer interface {
	// OnEvent is called for each event the observer subscribed to.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier used for registration
	// tracking and debugging.
	ObserverID() string
}

// Subject accepts observer registrations and distributes events to them.
// The component manager emits through a Subject when one is attached.
type Subject interface {
	// RegisterObserver adds an observer, optionally filtered to the given
	// event types. An empty filter receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Removing an observer that
	// was never registered is a no-op.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers an event to every matching observer.
	// Observer errors are contained per observer.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

// CloudEvent types emitted by the component manager, in reverse domain
// notation per the CloudEvents specification.
const (
	EventTypeModuleLoaded        = "com.declwire.module.loaded"
	EventTypeModuleUnloaded      = "com.declwire.module.unloaded"
	EventTypeComponentRegistered = "com.declwire.component.registered"
	EventTypeComponentStopped    = "com.declwire.component.stopped"
	EventTypeDescriptorError     = "com.declwire.descriptor.error"
)

// FunctionalObserver adapts a plain function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by the given function.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent calls the wrapped handler.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the observer identifier.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// EventBus is a minimal in-process Subject. Notification is synchronous and
// observer errors are logged, never propagated to the emitter.
type EventBus struct {
	logger Logger

	mu      sync.RWMutex
	entries []busEntry
}

type busEntry struct {
	observer     Observer
	eventTypes   []string
	registeredAt time.Time
}

// NewEventBus creates an event bus that reports observer errors to logger.
func NewEventBus(logger Logger) *EventBus {
	return &EventBus{logger: logger}
}

// RegisterObserver implements Subject.
func (b *EventBus) RegisterObserver(observer Observer, eventTypes ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, busEntry{
		observer:     observer,
		eventTypes:   eventTypes,
		registeredAt: time.Now(),
	})
	return nil
}

// UnregisterObserver implements Subject.
func (b *EventBus) UnregisterObserver(observer Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = slices.DeleteFunc(b.entries, func(e busEntry) bool {
		return e.observer.ObserverID() == observer.ObserverID()
	})
	return nil
}

// NotifyObservers implements Subject.
func (b *EventBus) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	b.mu.RLock()
	entries := slices.Clone(b.entries)
	b.mu.RUnlock()

	for _, entry := range entries {
		if len(entry.eventTypes) > 0 && !slices.Contains(entry.eventTypes, event.Type()) {
			continue
		}
		if err := entry.observer.OnEvent(ctx, event); err != nil {
			b.logger.Error("Observer failed to handle event",
				"observer", entry.observer.ObserverID(),
				"eventType", event.Type(),
				"error", err)
		}
	}
	return nil
}
