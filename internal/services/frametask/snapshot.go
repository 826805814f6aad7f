package frametask

import (
	"time"

	"frameq/internal/frames"
)

// Snapshot is a lightweight diagnostics view.
type Snapshot struct {
	Running     bool
	Rate        int
	Budget      time.Duration
	Development bool

	QueueLen     int
	FramePending bool

	Frames   uint64
	Executed uint64
	Failed   uint64
	Overruns uint64
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:      !s.tornDown,
		Rate:         s.rate,
		Budget:       frames.RatePeriod(s.rate),
		Development:  s.development,
		QueueLen:     len(s.queue),
		FramePending: s.frame != 0 || s.draining,
	}
	s.mu.Unlock()

	snap.Frames = s.frames.Load()
	snap.Executed = s.executed.Load()
	snap.Failed = s.failed.Load()
	snap.Overruns = s.overruns.Load()
	return snap
}

// Snapshot reports the service view; a stopped service yields a zero-valued
// snapshot with the configured rate.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	sched := s.sched
	cfg := s.cfg
	s.mu.Unlock()

	if sched == nil {
		return Snapshot{Rate: cfg.Rate, Budget: frames.RatePeriod(cfg.Rate), Development: cfg.Development}
	}
	return sched.Snapshot()
}
