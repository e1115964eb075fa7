// Package engine provides a reference dependency-management runtime for
// declwire component configurations.
//
// The engine instantiates component implementations through the module's
// type registry, tracks the services each active component provides, and
// drives component lifecycle from dependency satisfaction: a component with
// unsatisfied required dependencies stays pending until the services,
// configurations, modules, or resources it needs become available, and is
// deactivated back to pending when a required service disappears. Temporal
// service dependencies tolerate the loss of their service for a bounded time
// before deactivating the dependent.
//
// Lifecycle and dependency callbacks are invoked by method name on the
// implementation instance (or on its composition members). Callbacks must
// not call back into the engine.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/declwire/declwire"
)

// Static errors for engine package
var (
	ErrFactoryMethodMissing = errors.New("factory method not found")
	ErrFactoryMethodResult  = errors.New("factory method returned no instance")
	ErrCallbackNotFound     = errors.New("callback method not found")
	ErrCallbackArgs         = errors.New("callback arguments cannot be satisfied")
	ErrAutoConfigField      = errors.New("auto-config field cannot be set")
	ErrCompositionInvalid   = errors.New("composition accessor must return []any")
)

// defaultTemporalTimeout applies when a temporal dependency declares no
// timeout attribute.
const defaultTemporalTimeout = 30 * time.Second

type componentState int

const (
	statePending componentState = iota
	stateActive
	stateFailed
	stateStopped
)

// provider records one published service.
type provider struct {
	service  string
	props    map[string]string
	ranking  int
	instance any
	owner    *component
}

// Engine is the reference Runtime implementation.
type Engine struct {
	logger declwire.Logger
	host   declwire.ModuleHost

	mu         sync.Mutex
	providers  map[string][]*provider
	configs    map[string]map[string]string
	components []*component
}

// Option configures an Engine.
type Option func(*Engine)

// WithHost lets the engine evaluate module dependencies against a host's
// active modules. Without a host, module dependencies are satisfiable only
// when optional.
func WithHost(host declwire.ModuleHost) Option {
	return func(e *Engine) { e.host = host }
}

// New creates an engine.
func New(logger declwire.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:    logger,
		providers: make(map[string][]*provider),
		configs:   make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register implements declwire.Runtime. The component is instantiated
// immediately; it activates as soon as its required dependencies are
// satisfied, which may be during this call or later.
func (e *Engine) Register(mod declwire.Module, cfg declwire.ComponentConfig) (declwire.Component, error) {
	instance, err := newInstance(mod, cfg)
	if err != nil {
		return nil, err
	}

	c := &component{
		engine:   e,
		mod:      mod,
		cfg:      cfg,
		deps:     effectiveDependencies(cfg),
		instance: instance,
	}

	e.mu.Lock()
	e.components = append(e.components, c)
	e.mu.Unlock()

	e.logger.Debug("Component instantiated",
		"module", mod.Name(), "kind", cfg.Kind.String(), "impl", cfg.Impl)

	e.activate()
	return c, nil
}

// SetConfiguration publishes (or replaces) a configuration by PID. Pending
// components waiting on the PID may activate; active components with an
// updated callback on the PID receive the new properties.
func (e *Engine) SetConfiguration(pid string, props map[string]string) {
	e.mu.Lock()
	e.configs[pid] = props
	var notify []*component
	for _, c := range e.components {
		if c.state != stateActive {
			continue
		}
		for _, dep := range c.deps {
			if dep.Kind == declwire.KindConfigurationDependency && dep.PID == pid {
				notify = append(notify, c)
			}
		}
	}
	e.mu.Unlock()

	for _, c := range notify {
		for _, dep := range c.deps {
			if dep.Kind != declwire.KindConfigurationDependency || dep.PID != pid {
				continue
			}
			if err := c.invoke(dep.Updated, props); err != nil {
				e.logger.Error("Configuration update callback failed",
					"module", c.mod.Name(), "pid", pid, "error", err)
			}
		}
	}

	e.activate()
}

// Service resolves the highest-ranking provider of a service name, for
// embedding applications that need direct access.
func (e *Engine) Service(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := bestProvider(e.providers[name], "")
	if p == nil {
		return nil, false
	}
	return p.instance, true
}

// activate starts pending components until no more can start. Callbacks run
// outside the engine lock.
func (e *Engine) activate() {
	for {
		e.mu.Lock()
		var next *component
		for _, c := range e.components {
			if c.state == statePending && e.allSatisfied(c) {
				next = c
				break
			}
		}
		e.mu.Unlock()

		if next == nil {
			return
		}
		if err := e.start(next); err != nil {
			e.logger.Error("Failed to activate component",
				"module", next.mod.Name(), "kind", next.cfg.Kind.String(), "error", err)
			e.mu.Lock()
			next.state = stateFailed
			e.mu.Unlock()
		}
	}
}

// allSatisfied reports whether every dependency of the component is
// currently satisfiable. Caller holds the engine lock.
func (e *Engine) allSatisfied(c *component) bool {
	for _, dep := range c.deps {
		if !e.depSatisfied(c, dep) {
			return false
		}
	}
	return true
}

func (e *Engine) depSatisfied(c *component, dep declwire.DependencyConfig) bool {
	switch dep.Kind {
	case declwire.KindServiceDependency, declwire.KindTemporalServiceDependency:
		if bestProvider(e.providers[dep.Service], dep.Filter) != nil {
			return true
		}
		if dep.DefaultImpl != "" {
			return true
		}
		return !dep.Required
	case declwire.KindConfigurationDependency:
		_, exists := e.configs[dep.PID]
		return exists || !dep.Required
	case declwire.KindBundleDependency:
		if e.moduleMatch(dep) != nil {
			return true
		}
		return !dep.Required
	case declwire.KindResourceDependency:
		if resourceExists(c.mod, dep.Filter) {
			return true
		}
		return !dep.Required
	default:
		return true
	}
}

// moduleMatch finds an active host module matching a module dependency.
// The filter matches the module name exactly; an empty filter matches any
// module. Caller may hold the engine lock; the host is queried directly.
func (e *Engine) moduleMatch(dep declwire.DependencyConfig) declwire.Module {
	if e.host == nil {
		return nil
	}
	mask := dep.StateMask
	if mask == declwire.StateMaskUnset {
		mask = declwire.DefaultStateMask
	}
	if mask&int(declwire.ModuleActive) == 0 {
		// The host only exposes active modules.
		return nil
	}
	for _, mod := range e.host.ActiveModules() {
		if dep.Filter == "" || dep.Filter == mod.Name() {
			return mod
		}
	}
	return nil
}

func resourceExists(mod declwire.Module, path string) bool {
	rc, err := mod.OpenEntry(path)
	if err != nil {
		return false
	}
	_ = rc.Close()
	return true
}

// bestProvider picks the highest-ranking provider whose properties match the
// filter, or nil.
func bestProvider(candidates []*provider, filter string) *provider {
	var best *provider
	for _, p := range candidates {
		if !matchFilter(filter, p.props) {
			continue
		}
		if best == nil || p.ranking > best.ranking {
			best = p
		}
	}
	return best
}

// start injects dependencies, runs init/start callbacks, and publishes the
// component's services. Returns an error when a callback or injection fails;
// the component is then marked failed by the caller.
func (e *Engine) start(c *component) error {
	if err := e.inject(c); err != nil {
		return err
	}
	if err := c.invoke(c.cfg.Callbacks.Init); err != nil {
		return err
	}
	if err := c.invoke(c.cfg.Callbacks.Start); err != nil {
		return err
	}

	names, props := c.published()

	e.mu.Lock()
	c.state = stateActive
	published := make([]*provider, 0, len(names))
	for _, name := range names {
		p := &provider{
			service:  name,
			props:    props,
			ranking:  c.cfg.Ranking,
			instance: c.instance,
			owner:    c,
		}
		e.providers[name] = append(e.providers[name], p)
		published = append(published, p)
	}
	c.provided = published
	binds := e.collectBinds(c, names)
	e.mu.Unlock()

	e.logger.Info("Component activated",
		"module", c.mod.Name(), "kind", c.cfg.Kind.String(), "provides", names)

	e.runBinds(binds)
	return nil
}

// dynamicBind records an added-callback invocation owed to an already-active
// component whose service dependency was just satisfied by a new provider.
type dynamicBind struct {
	comp     *component
	dep      declwire.DependencyConfig
	instance any
}

// collectBinds gathers active components with a service dependency on one of
// the newly published names. Caller holds the engine lock.
func (e *Engine) collectBinds(publisher *component, names []string) []dynamicBind {
	var binds []dynamicBind
	for _, c := range e.components {
		if c == publisher || c.state != stateActive {
			continue
		}
		for _, dep := range c.deps {
			if dep.Kind != declwire.KindServiceDependency && dep.Kind != declwire.KindTemporalServiceDependency {
				continue
			}
			for _, name := range names {
				if dep.Service == name && dep.Added != "" {
					binds = append(binds, dynamicBind{comp: c, dep: dep, instance: publisher.instance})
				}
			}
		}
	}
	return binds
}

func (e *Engine) runBinds(binds []dynamicBind) {
	for _, b := range binds {
		if err := b.comp.invoke(b.dep.Added, b.instance); err != nil {
			e.logger.Error("Service bind callback failed",
				"module", b.comp.mod.Name(), "service", b.dep.Service, "error", err)
		}
	}
}

// inject resolves every dependency of a component about to start and
// delivers it: auto-config fields are set, added/updated callbacks run.
func (e *Engine) inject(c *component) error {
	for _, dep := range c.deps {
		switch dep.Kind {
		case declwire.KindServiceDependency, declwire.KindTemporalServiceDependency:
			instance, found, err := e.resolveService(c, dep)
			if err != nil {
				return err
			}
			if !found {
				continue // optional and absent
			}
			if dep.AutoConfig != "" {
				if err := setField(c.instance, dep.AutoConfig, instance); err != nil {
					return err
				}
			}
			if dep.Added != "" {
				if err := c.invoke(dep.Added, instance); err != nil {
					return err
				}
			}
		case declwire.KindConfigurationDependency:
			e.mu.Lock()
			props, exists := e.configs[dep.PID]
			e.mu.Unlock()
			if !exists {
				continue
			}
			if err := c.invoke(dep.Updated, props); err != nil {
				return err
			}
		case declwire.KindBundleDependency:
			mod := e.moduleMatch(dep)
			if mod == nil {
				continue
			}
			if dep.Added != "" {
				if err := c.invoke(dep.Added, mod); err != nil {
					return err
				}
			}
		case declwire.KindResourceDependency:
			if !resourceExists(c.mod, dep.Filter) {
				continue
			}
			if dep.Added != "" {
				if err := c.invoke(dep.Added, dep.Filter); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolveService returns the instance backing a service dependency: the best
// live provider, or a freshly constructed default implementation.
func (e *Engine) resolveService(c *component, dep declwire.DependencyConfig) (any, bool, error) {
	e.mu.Lock()
	p := bestProvider(e.providers[dep.Service], dep.Filter)
	e.mu.Unlock()

	if p != nil {
		return p.instance, true, nil
	}
	if dep.DefaultImpl != "" {
		ctor, err := c.mod.LoadType(dep.DefaultImpl)
		if err != nil {
			return nil, false, err
		}
		instance, err := ctor()
		if err != nil {
			return nil, false, fmt.Errorf("default implementation %s: %w", dep.DefaultImpl, err)
		}
		return instance, true, nil
	}
	return nil, false, nil
}

// serviceLoss is one active component affected by a provider going away.
type serviceLoss struct {
	comp *component
	dep  declwire.DependencyConfig
}

// unpublish removes a stopping component's providers and classifies the
// dependents that lose their service. Caller holds the engine lock.
func (e *Engine) unpublish(c *component) []serviceLoss {
	lost := make(map[string]bool)
	for _, p := range c.provided {
		remaining := e.providers[p.service][:0]
		for _, other := range e.providers[p.service] {
			if other.owner != c {
				remaining = append(remaining, other)
			}
		}
		if len(remaining) == 0 {
			delete(e.providers, p.service)
			lost[p.service] = true
		} else {
			e.providers[p.service] = remaining
		}
	}
	c.provided = nil

	var losses []serviceLoss
	for _, other := range e.components {
		if other == c || other.state != stateActive {
			continue
		}
		for _, dep := range other.deps {
			if dep.Kind != declwire.KindServiceDependency && dep.Kind != declwire.KindTemporalServiceDependency {
				continue
			}
			if lost[dep.Service] && dep.DefaultImpl == "" {
				losses = append(losses, serviceLoss{comp: other, dep: dep})
			}
		}
	}
	return losses
}

// handleLosses reacts to dependents losing a service: optional dependencies
// get their removed callback, required ones deactivate the dependent, and
// temporal ones deactivate it only after the timeout elapses without a
// replacement provider.
func (e *Engine) handleLosses(losses []serviceLoss) {
	for _, loss := range losses {
		switch {
		case loss.dep.Kind == declwire.KindTemporalServiceDependency:
			timeout := loss.dep.Timeout
			if timeout == 0 {
				timeout = defaultTemporalTimeout
			}
			comp, dep := loss.comp, loss.dep
			time.AfterFunc(timeout, func() { e.recheckTemporal(comp, dep) })
		case loss.dep.Required:
			e.deactivate(loss.comp)
		default:
			if loss.dep.Removed != "" {
				if err := loss.comp.invoke(loss.dep.Removed, loss.dep.Service); err != nil {
					e.logger.Error("Service removed callback failed",
						"module", loss.comp.mod.Name(), "service", loss.dep.Service, "error", err)
				}
			}
		}
	}
}

// recheckTemporal runs when a temporal dependency's grace period expires.
func (e *Engine) recheckTemporal(c *component, dep declwire.DependencyConfig) {
	e.mu.Lock()
	replaced := bestProvider(e.providers[dep.Service], dep.Filter) != nil
	active := c.state == stateActive
	e.mu.Unlock()

	if active && !replaced {
		e.logger.Warn("Temporal dependency expired",
			"module", c.mod.Name(), "service", dep.Service, "timeout", dep.Timeout)
		e.deactivate(c)
		e.activate()
	}
}

// deactivate returns an active component to pending: its services are
// withdrawn (cascading to dependents) and its stop/destroy callbacks run.
// The component may activate again when its dependencies return.
func (e *Engine) deactivate(c *component) {
	e.mu.Lock()
	if c.state != stateActive {
		e.mu.Unlock()
		return
	}
	c.state = statePending
	losses := e.unpublish(c)
	e.mu.Unlock()

	e.logger.Info("Component deactivated", "module", c.mod.Name(), "kind", c.cfg.Kind.String())

	e.handleLosses(losses)
	c.runStopCallbacks()
}

// stopComponent permanently stops a component on behalf of the manager.
func (e *Engine) stopComponent(c *component) error {
	e.mu.Lock()
	if c.state == stateStopped {
		e.mu.Unlock()
		return nil
	}
	wasActive := c.state == stateActive
	c.state = stateStopped

	var losses []serviceLoss
	if wasActive {
		losses = e.unpublish(c)
	}
	for i, other := range e.components {
		if other == c {
			e.components = append(e.components[:i], e.components[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	e.handleLosses(losses)
	if wasActive {
		c.runStopCallbacks()
	}
	e.activate()
	return nil
}

// effectiveDependencies prepends the implicit dependency implied by the
// component kind (the aspected or adapted service, the factory
// configuration, the adapted module or resource) to the declared ones.
func effectiveDependencies(cfg declwire.ComponentConfig) []declwire.DependencyConfig {
	var implicit []declwire.DependencyConfig
	switch cfg.Kind {
	case declwire.KindAspectService:
		implicit = append(implicit, declwire.DependencyConfig{
			Kind:      declwire.KindServiceDependency,
			Service:   cfg.Service,
			Filter:    cfg.Filter,
			Required:  true,
			StateMask: declwire.StateMaskUnset,
		})
	case declwire.KindAdapterService:
		implicit = append(implicit, declwire.DependencyConfig{
			Kind:      declwire.KindServiceDependency,
			Service:   cfg.AdapteeService,
			Filter:    cfg.AdapteeFilter,
			Required:  true,
			StateMask: declwire.StateMaskUnset,
		})
	case declwire.KindBundleAdapterService:
		implicit = append(implicit, declwire.DependencyConfig{
			Kind:      declwire.KindBundleDependency,
			Filter:    cfg.Filter,
			Required:  true,
			StateMask: cfg.StateMask,
		})
	case declwire.KindResourceAdapterService:
		implicit = append(implicit, declwire.DependencyConfig{
			Kind:      declwire.KindResourceDependency,
			Filter:    cfg.Filter,
			Required:  true,
			StateMask: declwire.StateMaskUnset,
		})
	case declwire.KindFactoryConfigurationAdapterService:
		implicit = append(implicit, declwire.DependencyConfig{
			Kind:      declwire.KindConfigurationDependency,
			PID:       cfg.FactoryPID,
			Updated:   cfg.Updated,
			Required:  true,
			Propagate: cfg.Propagate,
			StateMask: declwire.StateMaskUnset,
		})
	}
	return append(implicit, cfg.Dependencies...)
}

// publishedServices computes the service names and properties a component
// registers when it activates.
func publishedServices(cfg declwire.ComponentConfig, configs map[string]map[string]string) ([]string, map[string]string) {
	var names []string
	props := make(map[string]string)
	for k, v := range cfg.Properties {
		props[k] = v
	}

	switch cfg.Kind {
	case declwire.KindService, declwire.KindFactoryConfigurationAdapterService:
		names = cfg.Provides
	case declwire.KindAspectService:
		names = []string{cfg.Service}
		props["service.ranking"] = strconv.Itoa(cfg.Ranking)
	case declwire.KindAdapterService:
		names = cfg.AdapterServices
		for k, v := range cfg.AdapterProperties {
			props[k] = v
		}
	case declwire.KindBundleAdapterService, declwire.KindResourceAdapterService:
		if cfg.Service != "" {
			names = []string{cfg.Service}
		}
	}

	// Propagating dependencies fold their source properties into the
	// component's registration properties.
	for _, dep := range cfg.Dependencies {
		if !dep.Propagate {
			continue
		}
		if dep.Kind == declwire.KindConfigurationDependency {
			for k, v := range configs[dep.PID] {
				props[k] = v
			}
		}
	}
	if cfg.Kind == declwire.KindFactoryConfigurationAdapterService && cfg.Propagate {
		for k, v := range configs[cfg.FactoryPID] {
			props[k] = v
		}
	}

	if len(props) == 0 {
		props = nil
	}
	return names, props
}
