package frametask

import (
	"fmt"
	"reflect"
)

// identity is the dedup/cancel key for a queued entry.
//
// Name-resolved callables are identified by (target, method name): resolving
// the same name on the same target always yields the same bound method.
// Func-valued callables are identified by (target, code entry point), since
// reflect cannot compare function values directly.
type identity struct {
	target any
	name   string
	key    uintptr
}

func (id identity) matches(other identity) bool {
	if !sameTarget(id.target, other.target) {
		return false
	}
	if id.name != "" || other.name != "" {
		return id.name == other.name
	}
	return id.key == other.key
}

// resolve turns the (target, callable) pair into an invokable function and
// its identity. Failure here is an admission error: it surfaces to the
// caller immediately and nothing is enqueued.
func resolve(target, callable any) (reflect.Value, identity, error) {
	switch c := callable.(type) {
	case nil:
		return reflect.Value{}, identity{}, ErrNotCallable
	case string:
		if target == nil {
			return reflect.Value{}, identity{}, fmt.Errorf("%w: %q", ErrNilTarget, c)
		}
		m := reflect.ValueOf(target).MethodByName(c)
		if !m.IsValid() {
			return reflect.Value{}, identity{}, fmt.Errorf("%w: %q on %T", ErrNoMethod, c, target)
		}
		return m, identity{target: target, name: c}, nil
	default:
		v := reflect.ValueOf(callable)
		if v.Kind() != reflect.Func || v.IsNil() {
			return reflect.Value{}, identity{}, fmt.Errorf("%w: %T", ErrNotCallable, callable)
		}
		return v, identity{target: target, key: v.Pointer()}, nil
	}
}

// Resolvable reports whether Schedule would admit the (target, callable)
// pair, without enqueuing anything. Callers that bind callables long before
// scheduling them (e.g. the metronome) use it to fail fast at registration.
func Resolvable(target, callable any) error {
	_, _, err := resolve(target, callable)
	return err
}

// sameTarget compares target identity without panicking on uncomparable
// types. Reference kinds compare by pointer; comparable values by ==.
func sameTarget(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	}
	if !av.Type().Comparable() {
		return false
	}
	return a == b
}
