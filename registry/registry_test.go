package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("greeter.Impl", func() (any, error) {
		return "instance", nil
	}))

	ctor, err := r.Lookup("greeter.Impl")
	require.NoError(t, err)

	instance, err := ctor()
	require.NoError(t, err)
	assert.Equal(t, "instance", instance)
}

func TestLookupUnknownType(t *testing.T) {
	r := New()

	_, err := r.Lookup("absent.Type")
	assert.ErrorIs(t, err, ErrTypeNotRegistered)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	ctor := func() (any, error) { return nil, nil }

	require.NoError(t, r.Register("dup", ctor))
	assert.ErrorIs(t, r.Register("dup", ctor), ErrTypeAlreadyRegistered)
}

func TestRegisterNilConstructor(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register("nil", nil), ErrNilConstructor)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := New()
	ctor := func() (any, error) { return nil, nil }

	r.MustRegister("dup", ctor)
	assert.Panics(t, func() { r.MustRegister("dup", ctor) })
}

func TestNamesSorted(t *testing.T) {
	r := New()
	ctor := func() (any, error) { return nil, nil }

	r.MustRegister("b.Type", ctor)
	r.MustRegister("a.Type", ctor)
	r.MustRegister("c.Type", ctor)

	assert.Equal(t, []string{"a.Type", "b.Type", "c.Type"}, r.Names())
}
