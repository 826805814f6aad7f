package frames

import "time"

// Handle identifies one outstanding frame request. Zero is never a valid
// handle, so callers may use 0 as their "no request pending" sentinel.
type Handle uint64

// Callback is invoked once per granted frame with the frame-start time.
// Frame-start times come from the source's clock and are monotonic.
type Callback func(start time.Time)

// Source is the host frame-callback primitive.
//
// Request registers cb to be invoked asynchronously on the next frame, at
// most once. Cancel releases a request that has not fired yet; canceling a
// spent or unknown handle is a no-op.
type Source interface {
	Request(cb Callback) Handle
	Cancel(h Handle)
}

// Clock supplies the timestamps used for frame budgeting. It must use the
// same time base as the Source's frame-start times.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the runtime's monotonic clock via time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
