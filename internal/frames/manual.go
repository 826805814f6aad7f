package frames

import (
	"sync"
	"time"
)

// Manual is a frame source driven by explicit Step calls. It exists for
// tests and for embedding hosts that already own a render loop and want to
// fire frameq's frame callbacks at their own cadence.
type Manual struct {
	mu      sync.Mutex
	seq     Handle
	pending map[Handle]Callback
}

func NewManual() *Manual {
	return &Manual{pending: map[Handle]Callback{}}
}

func (m *Manual) Request(cb Callback) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	h := m.seq
	m.pending[h] = cb
	return h
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	delete(m.pending, h)
	m.mu.Unlock()
}

// Pending reports how many requests are waiting for a frame.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Step fires all currently pending callbacks with the given frame-start time
// and returns how many fired. Requests made from inside a callback are held
// for the next Step, matching the at-most-once-per-request host contract.
func (m *Manual) Step(start time.Time) int {
	m.mu.Lock()
	cbs := make([]Callback, 0, len(m.pending))
	for _, cb := range m.pending {
		cbs = append(cbs, cb)
	}
	m.pending = map[Handle]Callback{}
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(start)
	}
	return len(cbs)
}
