// Package registry provides an explicit mapping from string implementation
// identifiers to constructor functions. Descriptors reference implementations
// by name; modules resolve those names through a TypeRegistry instead of any
// form of dynamic code loading.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Static errors for registry package
var (
	ErrTypeNotRegistered     = errors.New("type not registered")
	ErrTypeAlreadyRegistered = errors.New("type already registered")
	ErrNilConstructor        = errors.New("constructor is nil")
)

// Constructor creates a new implementation instance for a registered type.
type Constructor func() (any, error)

// TypeRegistry maps implementation identifiers to constructors. It is safe
// for concurrent use; registration typically happens at program start while
// lookups happen whenever a descriptor is loaded.
type TypeRegistry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New creates an empty type registry.
func New() *TypeRegistry {
	return &TypeRegistry{ctors: make(map[string]Constructor)}
}

// Register associates an identifier with a constructor. Identifiers are
// expected to be stable, fully qualified names such as "greeter.Impl".
func (r *TypeRegistry) Register(name string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("%w: %s", ErrNilConstructor, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyRegistered, name)
	}
	r.ctors[name] = ctor
	return nil
}

// MustRegister is Register for program-start wiring where a duplicate
// identifier is a programming error.
func (r *TypeRegistry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Lookup resolves an identifier to its constructor.
func (r *TypeRegistry) Lookup(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, exists := r.ctors[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, name)
	}
	return ctor, nil
}

// Names returns the registered identifiers in sorted order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
