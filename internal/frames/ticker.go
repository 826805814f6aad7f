package frames

import (
	"sync"
	"time"

	logx "frameq/pkg/logx"
)

// Ticker is the production frame source: a single goroutine fires pending
// frame callbacks at a fixed rate. Because every callback runs on that one
// goroutine, frame work is fully serialized, which is the cooperative model
// the scheduler is built on.
//
// A callback that panics takes the loop down; frame callbacks are expected
// to do their own failure isolation.
type Ticker struct {
	mu      sync.Mutex
	period  time.Duration
	seq     Handle
	pending map[Handle]Callback

	stopCh chan struct{}
	doneCh chan struct{}

	log logx.Logger
}

// NewTicker creates a stopped ticker source firing rate frames per second.
func NewTicker(rate int, log logx.Logger) *Ticker {
	return &Ticker{
		period:  RatePeriod(rate),
		pending: map[Handle]Callback{},
		log:     log,
	}
}

// RatePeriod converts a frames-per-second rate to a frame interval.
// Rates outside [1, 1000] fall back to 60.
func RatePeriod(rate int) time.Duration {
	if rate < 1 || rate > 1000 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// Start launches the frame loop. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCh != nil {
		return
	}
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.loop(t.stopCh, t.doneCh)
	t.log.Debug("frame ticker started", logx.Duration("period", t.period))
}

// Stop halts the frame loop and waits for it to exit. Pending requests are
// kept; they fire after the next Start.
func (t *Ticker) Stop() {
	t.mu.Lock()
	stopCh := t.stopCh
	doneCh := t.doneCh
	t.stopCh = nil
	t.doneCh = nil
	t.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
	t.log.Debug("frame ticker stopped")
}

// Apply changes the frame rate. Takes effect on the next frame.
func (t *Ticker) Apply(rate int) {
	t.mu.Lock()
	t.period = RatePeriod(rate)
	t.mu.Unlock()
}

func (t *Ticker) Request(cb Callback) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	h := t.seq
	t.pending[h] = cb
	return h
}

func (t *Ticker) Cancel(h Handle) {
	t.mu.Lock()
	delete(t.pending, h)
	t.mu.Unlock()
}

func (t *Ticker) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	t.mu.Lock()
	period := t.period
	t.mu.Unlock()

	tk := time.NewTicker(period)
	defer tk.Stop()

	for {
		select {
		case <-stopCh:
			return
		case start := <-tk.C:
			t.fire(start)

			// Pick up rate changes between frames.
			t.mu.Lock()
			p := t.period
			t.mu.Unlock()
			if p != period {
				period = p
				tk.Reset(period)
			}
		}
	}
}

// fire snapshots and clears the pending set before invoking, so requests
// made from inside a callback land in the next frame, never the current one.
func (t *Ticker) fire(start time.Time) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	cbs := make([]Callback, 0, len(t.pending))
	for _, cb := range t.pending {
		cbs = append(cbs, cb)
	}
	t.pending = map[Handle]Callback{}
	t.mu.Unlock()

	for _, cb := range cbs {
		cb(start)
	}
}
