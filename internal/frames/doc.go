// Package frames provides the host frame-callback primitive consumed by the
// frame scheduler.
//
// A Source hands out frame callbacks: each Request is answered at most once,
// asynchronously, with a monotonic frame-start time. Ticker is the production
// source (a fixed-rate loop on a single goroutine, so all frame callbacks are
// serialized). Manual is a deterministic source for tests and for embedding
// hosts that already own a render loop.
package frames
