package declwire

import (
	"context"
	"time"
)

// DefaultStateMask is the module state mask applied to module adapter
// services when the descriptor does not carry a stateMask attribute.
const DefaultStateMask = int(ModuleInstalled | ModuleResolved | ModuleActive)

// StateMaskUnset is the sentinel meaning "no stateMask attribute present,
// keep the runtime's default" on module dependencies.
const StateMaskUnset = -1

// Callbacks names the lifecycle callback methods of a component
// implementation. Empty names mean the callback is not declared.
type Callbacks struct {
	Init    string `json:"init,omitempty"`
	Start   string `json:"start,omitempty"`
	Stop    string `json:"stop,omitempty"`
	Destroy string `json:"destroy,omitempty"`
}

// ComponentConfig is the assembled, immutable representation of one managed
// component parsed from a descriptor. Which fields are meaningful depends on
// Kind; the per-kind builders in factory.go populate exactly the fields that
// kind defines. The whole record, dependencies included, is handed to the
// runtime in a single Register call.
type ComponentConfig struct {
	Kind EntryKind `json:"kind"`

	// Implementation reference: either Impl names a constructible type, or
	// Factory names one whose FactoryMethod produces the instance.
	Impl          string `json:"impl,omitempty"`
	Factory       string `json:"factory,omitempty"`
	FactoryMethod string `json:"factoryMethod,omitempty"`

	Callbacks   Callbacks `json:"callbacks"`
	Composition string    `json:"composition,omitempty"`

	// Provided service interfaces with their registration properties.
	Provides   []string          `json:"provides,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`

	// Aspect services: the aspected service, an optional filter, and the
	// aspect ranking.
	Service string `json:"service,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Ranking int    `json:"ranking,omitempty"`

	// Adapter services: the adapted service and the interfaces the adapter
	// itself provides.
	AdapteeService    string            `json:"adapteeService,omitempty"`
	AdapteeFilter     string            `json:"adapteeFilter,omitempty"`
	AdapterServices   []string          `json:"adapterServices,omitempty"`
	AdapterProperties map[string]string `json:"adapterProperties,omitempty"`

	// Module adapter services: which module states trigger adaptation.
	StateMask int  `json:"stateMask,omitempty"`
	Propagate bool `json:"propagate,omitempty"`

	// Factory configuration adapter services.
	FactoryPID string `json:"factoryPid,omitempty"`
	Updated    string `json:"updated,omitempty"`

	// Dependencies in descriptor order.
	Dependencies []DependencyConfig `json:"dependencies,omitempty"`
}

// DependencyConfig is the immutable representation of one dependency entry.
// As with ComponentConfig, the meaningful fields depend on Kind.
type DependencyConfig struct {
	Kind EntryKind `json:"kind"`

	// Service and temporal service dependencies.
	Service     string        `json:"service,omitempty"`
	Filter      string        `json:"filter,omitempty"`
	DefaultImpl string        `json:"defaultImpl,omitempty"`
	AutoConfig  string        `json:"autoConfig,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`

	// Callback method names on the component implementation.
	Added   string `json:"added,omitempty"`
	Changed string `json:"changed,omitempty"`
	Removed string `json:"removed,omitempty"`

	Required  bool `json:"required"`
	Propagate bool `json:"propagate,omitempty"`

	// Configuration dependencies.
	PID     string `json:"pid,omitempty"`
	Updated string `json:"updated,omitempty"`

	// Module dependencies. StateMaskUnset keeps the runtime default.
	StateMask int `json:"stateMask,omitempty"`
}

// Component is a live, runtime-managed service instance. The component
// manager keeps a non-owning reference so it can stop the component when its
// module stops; everything else about the component's lifecycle belongs to
// the runtime that created it.
type Component interface {
	// Stop tears the component down. Stop is idempotent; stopping an
	// already stopped component is a no-op.
	Stop(ctx context.Context) error
}

// Runtime is the external dependency-management runtime. It receives one
// fully assembled configuration record per descriptor and returns the live
// component it registered. The engine package provides a reference
// implementation.
type Runtime interface {
	Register(mod Module, cfg ComponentConfig) (Component, error)
}
