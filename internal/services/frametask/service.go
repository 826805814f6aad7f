package frametask

import (
	"sync"

	"frameq/internal/eventbus"
	"frameq/internal/frames"
	logx "frameq/pkg/logx"
)

// Config controls the frametask service.
type Config struct {
	// Rate is the target frame rate (frames per second, default 60).
	Rate int
	// Development enables admission stack capture and overrun diagnostics.
	Development bool
}

// Service wraps a Scheduler with the service lifecycle: it owns the ticker
// frame source and rebuilds the scheduler across stop/start cycles.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log logx.Logger
	bus eventbus.Bus

	ticker *frames.Ticker
	sched  *Scheduler
}

func NewService(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.Rate < 1 || cfg.Rate > 1000 {
		cfg.Rate = 60
	}
	return &Service{cfg: cfg, log: log, bus: bus}
}

// Start builds a fresh scheduler on a ticker frame source and begins the
// frame loop. Starting a running service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		return
	}

	s.ticker = frames.NewTicker(s.cfg.Rate, s.log)
	s.sched = New(Options{
		Rate:        s.cfg.Rate,
		Development: s.cfg.Development,
		Source:      s.ticker,
		Log:         s.log,
		Bus:         s.bus,
	})
	s.ticker.Start()

	s.log.Info("frametask started",
		logx.Int("rate", s.cfg.Rate),
		logx.Duration("budget", frames.RatePeriod(s.cfg.Rate)),
		logx.Bool("development", s.cfg.Development),
	)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeServiceStarted})
	}
}

// Stop tears the scheduler down (remaining entries are dropped, not
// executed) and halts the frame loop. Stopping a stopped service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	sched := s.sched
	ticker := s.ticker
	s.sched = nil
	s.ticker = nil
	s.mu.Unlock()

	if sched == nil {
		return
	}
	sched.Teardown()
	ticker.Stop()

	s.log.Info("frametask stopped")
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeServiceStopped})
	}
}

// Apply updates the service from a reloaded config. Rate changes take
// effect on the next frame; flipping Development requires a restart and is
// only logged.
func (s *Service) Apply(cfg Config) {
	if cfg.Rate < 1 || cfg.Rate > 1000 {
		cfg.Rate = 60
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Development != s.cfg.Development {
		s.log.Warn("development flag change requires restart; keeping current mode",
			logx.Bool("running", s.cfg.Development), logx.Bool("requested", cfg.Development))
		cfg.Development = s.cfg.Development
	}

	if cfg.Rate != s.cfg.Rate {
		s.log.Info("frame rate changed", logx.Int("from", s.cfg.Rate), logx.Int("to", cfg.Rate))
		if s.sched != nil {
			s.sched.SetRate(cfg.Rate)
		}
		if s.ticker != nil {
			s.ticker.Apply(cfg.Rate)
		}
	}
	s.cfg = cfg
}

// Scheduler returns the live scheduler, or nil while the service is stopped.
func (s *Service) Scheduler() *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched
}
