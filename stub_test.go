package declwire

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/declwire/declwire/registry"
)

// testLogger discards output. Tests assert on behavior, not log lines.
type testLogger struct{}

func (testLogger) Info(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Debug(string, ...any) {}

// fakeModule is an in-memory module: headers, entry contents, and loadable
// type names are plain maps.
type fakeModule struct {
	name    string
	headers map[string]string
	entries map[string]string
	types   map[string]bool
}

func newFakeModule(name string) *fakeModule {
	return &fakeModule{
		name:    name,
		headers: make(map[string]string),
		entries: make(map[string]string),
		types:   make(map[string]bool),
	}
}

func (m *fakeModule) Name() string              { return m.name }
func (m *fakeModule) Header(name string) string { return m.headers[name] }

func (m *fakeModule) OpenEntry(path string) (io.ReadCloser, error) {
	content, exists := m.entries[path]
	if !exists {
		return nil, fmt.Errorf("no such entry: %s", path)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *fakeModule) LoadType(name string) (registry.Constructor, error) {
	if !m.types[name] {
		return nil, fmt.Errorf("%w: %s", registry.ErrTypeNotRegistered, name)
	}
	return func() (any, error) { return &struct{}{}, nil }, nil
}

// fakeHost delivers lifecycle events to its listeners on demand.
type fakeHost struct {
	mu        sync.Mutex
	active    []Module
	listeners []ModuleListener
}

func (h *fakeHost) ActiveModules() []Module {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Module(nil), h.active...)
}

func (h *fakeHost) AddListener(l ModuleListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

func (h *fakeHost) RemoveListener(l ModuleListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

func (h *fakeHost) fire(mod Module, state ModuleState) {
	h.mu.Lock()
	listeners := append([]ModuleListener(nil), h.listeners...)
	h.mu.Unlock()
	for _, l := range listeners {
		l.ModuleChanged(ModuleEvent{Module: mod, State: state})
	}
}

// fakeRuntime records every registration and hands out components whose
// Stop calls are counted.
type fakeRuntime struct {
	mu          sync.Mutex
	registered  []ComponentConfig
	components  []*fakeComponent
	registerErr error
	stopErr     error
}

func (r *fakeRuntime) Register(_ Module, cfg ComponentConfig) (Component, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return nil, r.registerErr
	}
	r.registered = append(r.registered, cfg)
	c := &fakeComponent{stopErr: r.stopErr}
	r.components = append(r.components, c)
	return c, nil
}

func (r *fakeRuntime) configs() []ComponentConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ComponentConfig(nil), r.registered...)
}

type fakeComponent struct {
	mu      sync.Mutex
	stops   int
	stopErr error
}

func (c *fakeComponent) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopErr
}

func (c *fakeComponent) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}
