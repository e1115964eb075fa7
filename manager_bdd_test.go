package declwire

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

type managerScenario struct {
	mod     *fakeModule
	host    *fakeHost
	runtime *fakeRuntime
	cm      *ComponentManager
}

func (s *managerScenario) reset() {
	s.mod = nil
	s.host = &fakeHost{}
	s.runtime = &fakeRuntime{}
	s.cm = NewComponentManager(s.host, s.runtime, testLogger{})
}

func (s *managerScenario) aModuleThatCanLoadType(name, typeName string) error {
	s.mod = newFakeModule(name)
	s.mod.types[typeName] = true
	return nil
}

func (s *managerScenario) theModuleDeclaresDescriptor(path string, content *godog.DocString) error {
	if s.mod == nil {
		return fmt.Errorf("no module declared")
	}
	header := s.mod.headers[HeaderComponent]
	if header != "" {
		header += ","
	}
	s.mod.headers[HeaderComponent] = header + path
	s.mod.entries[path] = content.Content
	return nil
}

func (s *managerScenario) theModuleBecomesActive() error {
	if err := s.cm.Start(); err != nil {
		return err
	}
	s.host.fire(s.mod, ModuleActive)
	return nil
}

func (s *managerScenario) theModuleStops() error {
	s.host.fire(s.mod, ModuleStopping)
	return nil
}

func (s *managerScenario) componentsAreRegistered(count int) error {
	if got := len(s.runtime.configs()); got != count {
		return fmt.Errorf("expected %d registered components, got %d", count, got)
	}
	return nil
}

func (s *managerScenario) theRegisteredComponentProvides(service string) error {
	configs := s.runtime.configs()
	if len(configs) == 0 {
		return fmt.Errorf("no components registered")
	}
	for _, provided := range configs[0].Provides {
		if provided == service {
			return nil
		}
	}
	return fmt.Errorf("component provides %v, expected %s", configs[0].Provides, service)
}

func (s *managerScenario) everyComponentStopped() error {
	if len(s.runtime.components) == 0 {
		return fmt.Errorf("no components were registered")
	}
	for i, c := range s.runtime.components {
		if c.stopCount() != 1 {
			return fmt.Errorf("component %d stopped %d times, expected 1", i, c.stopCount())
		}
	}
	return nil
}

func InitializeManagerScenario(ctx *godog.ScenarioContext) {
	s := &managerScenario{}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		s.reset()
		return c, nil
	})

	ctx.Step(`^a module "([^"]*)" that can load type "([^"]*)"$`, s.aModuleThatCanLoadType)
	ctx.Step(`^the module declares descriptor "([^"]*)" containing:$`, s.theModuleDeclaresDescriptor)
	ctx.Step(`^the module becomes active$`, s.theModuleBecomesActive)
	ctx.Step(`^the module stops$`, s.theModuleStops)
	ctx.Step(`^(\d+) components? (?:is|are) registered$`, s.componentsAreRegistered)
	ctx.Step(`^the registered component provides "([^"]*)"$`, s.theRegisteredComponentProvides)
	ctx.Step(`^every registered component has been stopped$`, s.everyComponentStopped)
}

func TestComponentManagerBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeManagerScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/component_manager.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("component manager feature tests failed")
	}
}
