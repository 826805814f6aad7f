// Package frametask provides a frame-budgeted cooperative task scheduler.
//
// # Overview
//
// Deferred callbacks are kept in a FIFO queue and drained inside host frame
// callbacks. Each frame executes as many queued tasks as fit within the
// per-frame time budget (1s divided by the configured rate, default 60) and
// defers the remainder to the next frame. The budget is soft: a task that has
// started always runs to completion; the budget only gates whether another
// task is started within the same frame.
//
// # Scheduling forms
//
// Schedule accepts either a bare function (ScheduleFunc, or a nil target with
// a func callable) or a target plus a method name or func value. Method names
// are resolved against the target at admission time; an unresolvable callable
// is an admission error returned to the caller, never enqueued.
//
// ScheduleOnce is the throttling primitive: repeated calls for the same
// (target, callable) pair while an entry is still pending collapse into the
// existing entry, replacing its arguments in place and keeping its original
// queue position.
//
// # Failure isolation
//
// Each task executes in isolation. A panic or a non-nil error result is
// forwarded to the configured error hook together with the task's admission
// stack (captured in development mode only) and never affects other queued
// tasks, the drain loop, or callers of Schedule.
//
// # Concurrency
//
// The host frame source serializes all frame callbacks onto one goroutine,
// so queued tasks never run in parallel with each other. Schedule,
// ScheduleOnce and Cancel are safe to call from any goroutine, including
// re-entrantly from inside a running task: the drain loop only ever operates
// on the live front of the queue, so mid-drain mutation is picked up on the
// next iteration.
//
// # Lifecycle
//
// The Service wraps a Scheduler with the usual start/stop/apply surface and
// owns the ticker frame source. Teardown drops remaining entries without
// executing them; there is no flush-on-teardown guarantee.
package frametask
