package engine

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// compositionTargets resolves the objects that receive lifecycle and
// dependency callbacks. Without a composition accessor the instance itself
// is the only target; with one, the accessor method on the instance returns
// the full target list.
func compositionTargets(instance any, accessor string) ([]any, error) {
	if accessor == "" {
		return []any{instance}, nil
	}

	method := reflect.ValueOf(instance).MethodByName(accessor)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrCallbackNotFound, accessor)
	}
	results := method.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrCompositionInvalid, accessor)
	}
	targets, ok := results[0].Interface().([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCompositionInvalid, accessor)
	}
	return targets, nil
}

// invokeCallback calls the named method on every target that declares it.
// For each method parameter, the first provided argument assignable to the
// parameter type is passed; a parameter with no matching argument fails the
// call. A target method may return nothing or a single error.
//
// No target declaring the method at all is an error: a descriptor naming a
// callback that does not exist is a wiring mistake, not a silent no-op.
func invokeCallback(targets []any, name string, args ...any) error {
	invoked := false
	for _, target := range targets {
		if target == nil {
			continue
		}
		method := reflect.ValueOf(target).MethodByName(name)
		if !method.IsValid() {
			continue
		}
		invoked = true

		callArgs, err := matchArgs(method.Type(), args)
		if err != nil {
			return err
		}
		results := method.Call(callArgs)
		if len(results) == 1 && results[0].Type().Implements(errorType) {
			if callErr, _ := results[0].Interface().(error); callErr != nil {
				return callErr
			}
		}
	}
	if !invoked {
		return fmt.Errorf("%w: %s", ErrCallbackNotFound, name)
	}
	return nil
}

func matchArgs(methodType reflect.Type, args []any) ([]reflect.Value, error) {
	callArgs := make([]reflect.Value, methodType.NumIn())
	for i := 0; i < methodType.NumIn(); i++ {
		paramType := methodType.In(i)
		matched := false
		for _, arg := range args {
			if arg == nil {
				continue
			}
			argValue := reflect.ValueOf(arg)
			if argValue.Type().AssignableTo(paramType) {
				callArgs[i] = argValue
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: parameter %d (%s)", ErrCallbackArgs, i, paramType)
		}
	}
	return callArgs, nil
}

// invokeFactoryMethod calls a no-argument factory method that returns the
// component instance, optionally with an error.
func invokeFactoryMethod(factory any, name string) (any, error) {
	method := reflect.ValueOf(factory).MethodByName(name)
	if !method.IsValid() {
		return nil, ErrFactoryMethodMissing
	}
	if method.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%w: takes arguments", ErrFactoryMethodMissing)
	}

	results := method.Call(nil)
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
		return results[0].Interface(), nil
	default:
		return nil, ErrFactoryMethodResult
	}
}

// setField assigns a resolved service instance to a named exported field of
// the implementation, which must be a struct pointer.
func setField(instance any, fieldName string, value any) error {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s requires a struct pointer implementation", ErrAutoConfigField, fieldName)
	}

	field := v.Elem().FieldByName(fieldName)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("%w: %s", ErrAutoConfigField, fieldName)
	}
	valueOf := reflect.ValueOf(value)
	if !valueOf.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("%w: %s cannot hold %s", ErrAutoConfigField, fieldName, valueOf.Type())
	}
	field.Set(valueOf)
	return nil
}
