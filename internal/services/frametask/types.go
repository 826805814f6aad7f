package frametask

import (
	"errors"
	"fmt"
	"reflect"

	"frameq/internal/eventbus"
	"frameq/internal/frames"
	logx "frameq/pkg/logx"
)

// Admission errors, returned synchronously by Schedule/ScheduleOnce/Cancel.
var (
	// ErrNilTarget means a method name was given without a target to resolve
	// it against.
	ErrNilTarget = errors.New("method name requires a target")
	// ErrNoMethod means the target has no method with the given name.
	ErrNoMethod = errors.New("no such method")
	// ErrNotCallable means the callable argument is neither a method name nor
	// a non-nil function value.
	ErrNotCallable = errors.New("callable is not a function")
	// ErrTornDown means the scheduler has been torn down and accepts no work.
	ErrTornDown = errors.New("scheduler torn down")
)

// ErrorHook receives isolated task failures. stack is the task's admission
// stack trace (nil outside development mode). A nil hook swallows failures;
// callers that care install one.
type ErrorHook func(err error, stack []byte)

// Options configures a Scheduler. Source is required; everything else has a
// usable default.
type Options struct {
	// Rate is the target frame rate; the per-frame budget is 1s/Rate.
	// Out-of-range values fall back to 60.
	Rate int

	// Development enables admission stack capture and per-task overrun
	// warnings. Fixed at construction so the production hot path pays
	// nothing for it.
	Development bool

	// Source is the host frame-callback primitive driving the drain loop.
	Source frames.Source

	// Clock supplies budget timestamps; defaults to the system clock. It must
	// share a time base with Source's frame-start times.
	Clock frames.Clock

	// OnError receives isolated task failures; defaults to a flood-limited
	// reporter on Log. Swappable later via SetOnError.
	OnError ErrorHook

	// Wrap, when set, encloses each task's synchronous body. Hosts use it to
	// batch task side effects with their own update cycle.
	Wrap func(func())

	Log logx.Logger
	Bus eventbus.Bus
}

// Entry is one queued unit of deferred work. Entries are immutable once
// admitted except that ScheduleOnce may replace args (and the diagnostic
// stack) in place on a duplicate.
type Entry struct {
	target   any
	callable any // the original method argument, as passed by the caller
	fn       reflect.Value
	id       identity
	args     []any
	stack    []byte // admission stack, development mode only
}

// Target returns the receiver the entry's callable is bound to, or nil for a
// bare function.
func (e *Entry) Target() any { return e.target }

// Callable returns the callable as the caller passed it: a method name
// string or a function value.
func (e *Entry) Callable() any { return e.callable }

// Args returns the arguments the callable will be (or would have been)
// invoked with.
func (e *Entry) Args() []any { return e.args }

// invoke calls the resolved function with the entry's arguments. A non-nil
// error in the function's last result position is reported as the task's
// failure. Arity or type mismatches surface as panics from reflect.Call and
// are caught by the drain loop's isolation wrapper.
func (e *Entry) invoke() error {
	t := e.fn.Type()
	in := make([]reflect.Value, len(e.args))
	for i, a := range e.args {
		if a != nil {
			in[i] = reflect.ValueOf(a)
			continue
		}
		// Untyped nil: substitute the zero value of the parameter type.
		switch {
		case t.IsVariadic() && i >= t.NumIn()-1:
			in[i] = reflect.Zero(t.In(t.NumIn() - 1).Elem())
		case i < t.NumIn():
			in[i] = reflect.Zero(t.In(i))
		default:
			in[i] = reflect.ValueOf(&a).Elem()
		}
	}

	out := e.fn.Call(in)
	if n := len(out); n > 0 {
		if err, ok := out[n-1].Interface().(error); ok && err != nil {
			return err
		}
	}
	return nil
}

func (e *Entry) callableName() string {
	if e.id.name != "" {
		return fmt.Sprintf("%T.%s", e.target, e.id.name)
	}
	return e.fn.Type().String()
}
