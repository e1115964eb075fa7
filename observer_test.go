package declwire

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

func countingObserver(id string, count *int) Observer {
	return NewFunctionalObserver(id, func(context.Context, cloudevents.Event) error {
		*count++
		return nil
	})
}

func TestEventBusDeliversToAllObservers(t *testing.T) {
	bus := NewEventBus(testLogger{})

	var a, b int
	if err := bus.RegisterObserver(countingObserver("a", &a)); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}
	if err := bus.RegisterObserver(countingObserver("b", &b)); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}

	event := NewComponentEvent(EventTypeModuleLoaded, componentEventData{Module: "m"})
	if err := bus.NotifyObservers(context.Background(), event); err != nil {
		t.Fatalf("NotifyObservers failed: %v", err)
	}

	if a != 1 || b != 1 {
		t.Errorf("Expected both observers notified once, got a=%d b=%d", a, b)
	}
}

func TestEventBusFiltersByEventType(t *testing.T) {
	bus := NewEventBus(testLogger{})

	var filtered int
	if err := bus.RegisterObserver(countingObserver("f", &filtered), EventTypeDescriptorError); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}

	_ = bus.NotifyObservers(context.Background(), NewComponentEvent(EventTypeModuleLoaded, nil))
	if filtered != 0 {
		t.Errorf("Observer should not receive unsubscribed event types, got %d", filtered)
	}

	_ = bus.NotifyObservers(context.Background(), NewComponentEvent(EventTypeDescriptorError, nil))
	if filtered != 1 {
		t.Errorf("Expected 1 delivery, got %d", filtered)
	}
}

func TestEventBusUnregister(t *testing.T) {
	bus := NewEventBus(testLogger{})

	var count int
	obs := countingObserver("gone", &count)
	if err := bus.RegisterObserver(obs); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}
	if err := bus.UnregisterObserver(obs); err != nil {
		t.Fatalf("UnregisterObserver failed: %v", err)
	}

	_ = bus.NotifyObservers(context.Background(), NewComponentEvent(EventTypeModuleLoaded, nil))
	if count != 0 {
		t.Errorf("Unregistered observer must not be notified, got %d", count)
	}
}

func TestEventBusContainsObserverErrors(t *testing.T) {
	bus := NewEventBus(testLogger{})

	failing := NewFunctionalObserver("failing", func(context.Context, cloudevents.Event) error {
		return errors.New("observer blew up")
	})
	var after int
	if err := bus.RegisterObserver(failing); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}
	if err := bus.RegisterObserver(countingObserver("after", &after)); err != nil {
		t.Fatalf("RegisterObserver failed: %v", err)
	}

	if err := bus.NotifyObservers(context.Background(), NewComponentEvent(EventTypeModuleLoaded, nil)); err != nil {
		t.Fatalf("Observer errors must not propagate, got %v", err)
	}
	if after != 1 {
		t.Errorf("Observers after a failing one must still be notified, got %d", after)
	}
}

func TestNewComponentEventIsValid(t *testing.T) {
	event := NewComponentEvent(EventTypeComponentRegistered, componentEventData{
		Module:     "greeter",
		Descriptor: "components/greeter.dm",
		Kind:       "Service",
	})

	if err := ValidateComponentEvent(event); err != nil {
		t.Fatalf("Event should validate: %v", err)
	}
	if event.Type() != EventTypeComponentRegistered {
		t.Errorf("Expected type %s, got %s", EventTypeComponentRegistered, event.Type())
	}
	if event.Source() != "declwire:component-manager" {
		t.Errorf("Unexpected source %s", event.Source())
	}
	if event.ID() == "" {
		t.Error("Expected a generated event ID")
	}
}

func TestManagerEmitsLifecycleEvents(t *testing.T) {
	bus := NewEventBus(testLogger{})
	var types []string
	_ = bus.RegisterObserver(NewFunctionalObserver("recorder", func(_ context.Context, e cloudevents.Event) error {
		types = append(types, e.Type())
		return nil
	}))

	mod := greeterModule()
	mod.headers[HeaderComponent] = "components/greeter.dm,missing.dm"
	host := &fakeHost{active: []Module{mod}}
	runtime := &fakeRuntime{}

	cm := newTestManager(host, runtime, WithSubject(bus))
	if err := cm.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	host.fire(mod, ModuleStopping)

	expected := []string{
		EventTypeComponentRegistered,
		EventTypeDescriptorError,
		EventTypeModuleLoaded,
		EventTypeComponentStopped,
		EventTypeModuleUnloaded,
	}
	if len(types) != len(expected) {
		t.Fatalf("Expected events %v, got %v", expected, types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("Event %d: expected %s, got %s", i, expected[i], types[i])
		}
	}
}
