// Package declwire loads declarative component descriptors from modules and
// wires the declared dependencies into managed components.
//
// A module is an isolated, independently lifecycled unit of code supplied by
// an external module host. When a module becomes active, the component
// manager reads the module's "DependencyManager-Component" header, parses
// each referenced descriptor resource line by line, and registers the
// resulting component configurations with a dependency-management runtime.
// When the module stops, its components are stopped and discarded.
//
// Basic usage:
//
//	mgr := declwire.NewComponentManager(host, runtime, logger)
//	if err := mgr.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer mgr.Stop()
package declwire

import (
	"io"

	"github.com/declwire/declwire/registry"
)

// ModuleState is a bit mask describing where a module is in its lifecycle.
// States combine with bitwise OR in module dependency state masks.
type ModuleState int

const (
	// ModuleInstalled means the module is known to the host but not yet
	// resolved or started.
	ModuleInstalled ModuleState = 1 << iota

	// ModuleResolved means the module's own requirements are satisfied and
	// it can be started.
	ModuleResolved

	// ModuleActive means the module has been started. Component descriptors
	// are loaded when a module enters this state.
	ModuleActive

	// ModuleStopping means the module is shutting down. Components loaded
	// for the module are stopped when it enters this state.
	ModuleStopping
)

// String returns the lifecycle state name.
func (s ModuleState) String() string {
	switch s {
	case ModuleInstalled:
		return "installed"
	case ModuleResolved:
		return "resolved"
	case ModuleActive:
		return "active"
	case ModuleStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Module is the unit of deployment observed by the component manager.
// The manager needs exactly four operations from a module: identity, header
// lookup, entry resolution, and implementation type loading. Everything else
// about the module is the host's business.
type Module interface {
	// Name returns the unique identifier of the module within its host.
	Name() string

	// Header returns the named manifest header, or the empty string when
	// the module does not carry it.
	Header(name string) string

	// OpenEntry resolves a module-relative resource path to a readable
	// byte stream. The caller owns the returned ReadCloser.
	OpenEntry(path string) (io.ReadCloser, error)

	// LoadType resolves a string implementation identifier declared in a
	// descriptor to a constructor. Identifiers the module cannot resolve
	// fail with an error wrapping registry.ErrTypeNotRegistered.
	LoadType(name string) (registry.Constructor, error)
}

// ModuleEvent notifies a listener that a module reached a lifecycle state.
type ModuleEvent struct {
	Module Module
	State  ModuleState
}

// ModuleListener receives module lifecycle events. Events for a single
// module are delivered serially and synchronously; events for different
// modules may arrive on different goroutines.
type ModuleListener interface {
	ModuleChanged(event ModuleEvent)
}

// ModuleHost is the external source of modules and their lifecycle events.
type ModuleHost interface {
	// ActiveModules enumerates the modules currently in the active state.
	// The component manager scans these once at startup.
	ActiveModules() []Module

	// AddListener registers a listener for subsequent lifecycle events.
	AddListener(l ModuleListener)

	// RemoveListener deregisters a previously added listener. Removing a
	// listener that was never added is a no-op.
	RemoveListener(l ModuleListener)
}
