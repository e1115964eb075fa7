package engine

import (
	"context"
	"fmt"

	"github.com/declwire/declwire"
)

// component is one runtime-managed instance with its configuration and
// effective dependency list. State transitions are guarded by the engine
// lock; callbacks always run with the lock released.
type component struct {
	engine   *Engine
	mod      declwire.Module
	cfg      declwire.ComponentConfig
	deps     []declwire.DependencyConfig
	instance any

	state    componentState
	provided []*provider
}

// Stop implements declwire.Component.
func (c *component) Stop(_ context.Context) error {
	return c.engine.stopComponent(c)
}

// published computes the services and registration properties the component
// exposes while active.
func (c *component) published() ([]string, map[string]string) {
	c.engine.mu.Lock()
	configs := make(map[string]map[string]string, len(c.engine.configs))
	for pid, props := range c.engine.configs {
		configs[pid] = props
	}
	c.engine.mu.Unlock()

	return publishedServices(c.cfg, configs)
}

// invoke calls a named callback on the component's composition targets.
// An empty name is a declared-nothing no-op.
func (c *component) invoke(name string, args ...any) error {
	if name == "" {
		return nil
	}
	targets, err := compositionTargets(c.instance, c.cfg.Composition)
	if err != nil {
		return err
	}
	if err := invokeCallback(targets, name, args...); err != nil {
		return fmt.Errorf("callback %s on %s: %w", name, c.cfg.Impl, err)
	}
	return nil
}

// runStopCallbacks runs the stop and destroy callbacks best-effort; failures
// are logged because teardown must proceed regardless.
func (c *component) runStopCallbacks() {
	for _, name := range []string{c.cfg.Callbacks.Stop, c.cfg.Callbacks.Destroy} {
		if err := c.invoke(name); err != nil {
			c.engine.logger.Error("Component teardown callback failed",
				"module", c.mod.Name(), "callback", name, "error", err)
		}
	}
}

// newInstance constructs the implementation instance: directly from the impl
// type, or through a factory type's factory method.
func newInstance(mod declwire.Module, cfg declwire.ComponentConfig) (any, error) {
	if cfg.Factory == "" {
		ctor, err := mod.LoadType(cfg.Impl)
		if err != nil {
			return nil, err
		}
		return ctor()
	}

	ctor, err := mod.LoadType(cfg.Factory)
	if err != nil {
		return nil, err
	}
	factory, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("factory %s: %w", cfg.Factory, err)
	}
	instance, err := invokeFactoryMethod(factory, cfg.FactoryMethod)
	if err != nil {
		return nil, fmt.Errorf("factory %s.%s: %w", cfg.Factory, cfg.FactoryMethod, err)
	}
	return instance, nil
}
