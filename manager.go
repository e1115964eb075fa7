package declwire

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// HeaderComponent is the manifest header listing the comma-separated
// descriptor resource paths of a module. Modules without this header are
// ignored by the component manager.
const HeaderComponent = "DependencyManager-Component"

const defaultStopTimeout = 30 * time.Second

// ComponentManager loads component descriptors for active modules and tracks
// the resulting components against module lifecycle.
//
// Failure containment is per descriptor path: a missing descriptor, a parse
// error, or a construction failure skips that descriptor only; sibling
// descriptors and sibling modules are unaffected. Every skipped descriptor is
// logged with the module identity and the resource path.
//
// The manager is safe for hosts that deliver events for different modules on
// different goroutines. Events for one module must arrive serially; a second
// activation without an intervening stop re-parses and re-registers that
// module's descriptors (this matches the source behavior and is not guarded).
type ComponentManager struct {
	host    ModuleHost
	runtime Runtime
	logger  Logger

	header      string
	stopTimeout time.Duration
	subject     Subject

	mu     sync.RWMutex
	loaded map[string][]*loadedComponent
}

// loadedComponent is the registry record for one component the runtime owns.
// The manager keeps it only to stop the component when its module stops and
// to serve inspection snapshots.
type loadedComponent struct {
	descriptor string
	config     ComponentConfig
	component  Component
}

// ManagerOption configures a ComponentManager.
type ManagerOption func(*ComponentManager)

// WithHeaderName overrides the manifest header consulted for descriptor
// paths. The default is HeaderComponent.
func WithHeaderName(name string) ManagerOption {
	return func(cm *ComponentManager) { cm.header = name }
}

// WithStopTimeout bounds how long stopping a module's components may take.
func WithStopTimeout(d time.Duration) ManagerOption {
	return func(cm *ComponentManager) { cm.stopTimeout = d }
}

// WithSubject attaches a Subject; the manager then emits CloudEvents for
// module loads, component registrations, stops, and descriptor errors.
func WithSubject(s Subject) ManagerOption {
	return func(cm *ComponentManager) { cm.subject = s }
}

// NewComponentManager creates a manager over the given module host and
// dependency-management runtime.
func NewComponentManager(host ModuleHost, runtime Runtime, logger Logger, opts ...ManagerOption) *ComponentManager {
	cm := &ComponentManager{
		host:        host,
		runtime:     runtime,
		logger:      logger,
		header:      HeaderComponent,
		stopTimeout: defaultStopTimeout,
		loaded:      make(map[string][]*loadedComponent),
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// Start scans the modules that are already active and then subscribes to
// module lifecycle events.
func (cm *ComponentManager) Start() error {
	for _, mod := range cm.host.ActiveModules() {
		cm.moduleActivated(mod)
	}
	cm.host.AddListener(cm)
	return nil
}

// Stop deregisters the lifecycle listener, stops every still-registered
// component across all modules, and clears the registry.
func (cm *ComponentManager) Stop() error {
	cm.host.RemoveListener(cm)

	cm.mu.Lock()
	loaded := cm.loaded
	cm.loaded = make(map[string][]*loadedComponent)
	cm.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cm.stopTimeout)
	defer cancel()

	for moduleName, components := range loaded {
		cm.stopComponents(ctx, moduleName, components)
	}
	return nil
}

// ModuleChanged implements ModuleListener.
func (cm *ComponentManager) ModuleChanged(event ModuleEvent) {
	switch event.State {
	case ModuleActive:
		cm.moduleActivated(event.Module)
	case ModuleStopping:
		cm.moduleStopped(event.Module)
	}
}

// moduleActivated loads every descriptor referenced by the module's header.
// Each descriptor path fails independently; the module ends up loaded with
// whatever subset succeeded.
func (cm *ComponentManager) moduleActivated(mod Module) {
	header := mod.Header(cm.header)
	if header == "" {
		return
	}

	for _, path := range strings.Split(header, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := cm.loadDescriptor(mod, path); err != nil {
			cm.logger.Error("Skipping component descriptor",
				"module", mod.Name(), "path", path, "error", err)
			cm.emit(EventTypeDescriptorError, componentEventData{
				Module:     mod.Name(),
				Descriptor: path,
				Error:      err.Error(),
			})
		}
	}

	cm.mu.RLock()
	count := len(cm.loaded[mod.Name()])
	cm.mu.RUnlock()

	cm.logger.Info("Module descriptors loaded", "module", mod.Name(), "components", count)
	cm.emit(EventTypeModuleLoaded, componentEventData{Module: mod.Name(), Components: count})
}

// loadDescriptor parses one descriptor resource, builds its component
// configuration with attached dependencies, and registers the result with
// the runtime. Any error aborts this descriptor only.
func (cm *ComponentManager) loadDescriptor(mod Module, path string) error {
	rc, err := mod.OpenEntry(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDescriptorNotFound, path, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			cm.logger.Warn("Failed to close descriptor",
				"module", mod.Name(), "path", path, "error", cerr)
		}
	}()

	cm.logger.Debug("Parsing descriptor", "module", mod.Name(), "path", path)

	parser := NewDescriptorParser(cm.logger)
	var cfg *ComponentConfig

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kind, err := parser.Parse(line)
		if err != nil {
			return err
		}

		if kind.IsService() {
			if cfg != nil {
				return fmt.Errorf("%w: %s", ErrDuplicateServiceEntry, path)
			}
			built, err := buildComponent(kind, mod, parser)
			if err != nil {
				return err
			}
			cfg = &built
			continue
		}

		if cfg == nil {
			return fmt.Errorf("%w: %s entry in %s", ErrDependencyBeforeService, kind, path)
		}
		dep, err := buildDependency(kind, mod, parser)
		if err != nil {
			return err
		}
		cfg.Dependencies = append(cfg.Dependencies, dep)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrDescriptorParse, path, err)
	}
	if cfg == nil {
		return fmt.Errorf("%w: %s", ErrEmptyDescriptor, path)
	}

	component, err := cm.runtime.Register(mod, *cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrComponentConstruction, err)
	}

	cm.mu.Lock()
	cm.loaded[mod.Name()] = append(cm.loaded[mod.Name()], &loadedComponent{
		descriptor: path,
		config:     *cfg,
		component:  component,
	})
	cm.mu.Unlock()

	cm.logger.Debug("Component registered",
		"module", mod.Name(), "path", path, "kind", cfg.Kind.String())
	cm.emit(EventTypeComponentRegistered, componentEventData{
		Module:     mod.Name(),
		Descriptor: path,
		Kind:       cfg.Kind.String(),
	})
	return nil
}

// moduleStopped stops and discards every component recorded for the module.
// Stopping a module that never loaded anything is a no-op.
func (cm *ComponentManager) moduleStopped(mod Module) {
	cm.mu.Lock()
	components := cm.loaded[mod.Name()]
	delete(cm.loaded, mod.Name())
	cm.mu.Unlock()

	if len(components) == 0 {
		return
	}

	cm.logger.Info("Module stopping", "module", mod.Name(), "components", len(components))

	ctx, cancel := context.WithTimeout(context.Background(), cm.stopTimeout)
	defer cancel()
	cm.stopComponents(ctx, mod.Name(), components)

	cm.emit(EventTypeModuleUnloaded, componentEventData{
		Module:     mod.Name(),
		Components: len(components),
	})
}

// stopComponents stops each component best-effort: a failing stop is logged
// and does not block stopping the remaining components.
func (cm *ComponentManager) stopComponents(ctx context.Context, moduleName string, components []*loadedComponent) {
	for _, lc := range components {
		if err := lc.component.Stop(ctx); err != nil {
			cm.logger.Error("Failed to stop component",
				"module", moduleName,
				"descriptor", lc.descriptor,
				"error", fmt.Errorf("%w: %v", ErrComponentStop, err))
		}
		cm.emit(EventTypeComponentStopped, componentEventData{
			Module:     moduleName,
			Descriptor: lc.descriptor,
			Kind:       lc.config.Kind.String(),
		})
	}
}

// emit sends an event through the attached subject, if any.
func (cm *ComponentManager) emit(eventType string, data componentEventData) {
	if cm.subject == nil {
		return
	}
	event := NewComponentEvent(eventType, data)
	if err := cm.subject.NotifyObservers(context.Background(), event); err != nil {
		cm.logger.Debug("Failed to emit event", "eventType", eventType, "error", err)
	}
}

// ComponentInfo describes one loaded component for inspection.
type ComponentInfo struct {
	Descriptor string          `json:"descriptor"`
	Config     ComponentConfig `json:"config"`
}

// ModuleComponents groups the loaded components of one module.
type ModuleComponents struct {
	Module     string          `json:"module"`
	Components []ComponentInfo `json:"components"`
}

// Snapshot returns the current registry contents sorted by module name.
func (cm *ComponentManager) Snapshot() []ModuleComponents {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]ModuleComponents, 0, len(cm.loaded))
	for moduleName, components := range cm.loaded {
		mc := ModuleComponents{Module: moduleName}
		for _, lc := range components {
			mc.Components = append(mc.Components, ComponentInfo{
				Descriptor: lc.descriptor,
				Config:     lc.config,
			})
		}
		out = append(out, mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}
