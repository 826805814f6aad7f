package metronome

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"frameq/internal/config"
	"frameq/internal/eventbus"
	"frameq/internal/services/frametask"
	logx "frameq/pkg/logx"
)

// job is a registered callable, scheduled onto the frame queue on each fire.
type job struct {
	target   any
	callable any
	args     []any
}

type binding struct {
	name    string
	raw     string
	spec    Spec
	job     string
	entryID cron.EntryID
}

// Service runs the wall-clock triggers. Jobs are registered in code;
// bindings (name, spec, job) come from config via Apply.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus

	// sched returns the live frame scheduler; nil while the frametask
	// service is stopped, in which case fires are skipped.
	sched func() *frametask.Scheduler

	jobs     map[string]job
	bindings []binding
	c        *cron.Cron
}

func NewService(log logx.Logger, bus eventbus.Bus, sched func() *frametask.Scheduler) *Service {
	return &Service{
		log:   log,
		bus:   bus,
		sched: sched,
		jobs:  map[string]job{},
	}
}

// Register makes a callable available to config bindings under name.
// Resolution is checked now, so a typo'd method name fails at startup
// instead of on the first fire.
func (s *Service) Register(name string, target, callable any, args ...any) error {
	if err := frametask.Resolvable(target, callable); err != nil {
		return fmt.Errorf("metronome job %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("metronome job %q already registered", name)
	}
	s.jobs[name] = job{target: target, callable: callable, args: args}
	return nil
}

// Apply replaces the trigger bindings. Unknown job names and bad specs are
// rejected as a whole; the previous bindings stay live. If the service is
// running, the cron runner is restarted with the new set.
func (s *Service) Apply(entries []config.MetronomeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings := make([]binding, 0, len(entries))
	for _, e := range entries {
		spec, err := ParseSpec(e.Spec)
		if err != nil {
			return fmt.Errorf("metronome %q: %w", e.Name, err)
		}
		if _, ok := s.jobs[e.Job]; !ok {
			return fmt.Errorf("metronome %q: unknown job %q", e.Name, e.Job)
		}
		bindings = append(bindings, binding{name: e.Name, raw: e.Spec, spec: spec, job: e.Job})
	}
	s.bindings = bindings

	if s.c != nil {
		s.restartLocked()
	}
	return nil
}

// Start begins firing triggers. Starting a running service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.startLocked()
	s.log.Info("metronome started", logx.Int("triggers", len(s.bindings)))
}

// Stop halts the triggers; in-flight fires are waited out.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("metronome stopped")
}

func (s *Service) startLocked() {
	s.c = cron.New(cron.WithParser(specParser))
	for i := range s.bindings {
		b := &s.bindings[i]
		id, err := s.c.AddFunc(b.spec.Cron, s.fire(b.name, b.raw, b.job))
		if err != nil {
			// Specs are validated in Apply; this is a programmer error.
			panic(fmt.Sprintf("metronome: unparseable validated spec %q: %v", b.spec.Cron, err))
		}
		b.entryID = id
	}
	s.c.Start()
}

func (s *Service) restartLocked() {
	old := s.c
	go func() { <-old.Stop().Done() }()
	s.startLocked()
}

func (s *Service) fire(name, spec, jobName string) func() {
	return func() {
		s.mu.Lock()
		j, ok := s.jobs[jobName]
		s.mu.Unlock()
		if !ok {
			return
		}

		sched := s.sched()
		if sched == nil {
			s.log.Debug("trigger fired while frametask stopped; skipping", logx.String("trigger", name))
			return
		}
		if err := sched.ScheduleOnce(j.target, j.callable, j.args...); err != nil {
			s.log.Warn("trigger enqueue failed", logx.String("trigger", name), logx.Err(err))
			return
		}

		s.log.Debug("trigger enqueued", logx.String("trigger", name), logx.String("job", jobName))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeMetronomeFired,
				Data: eventbus.MetronomeFire{Job: jobName, Spec: spec},
			})
		}
	}
}

// Info describes one active trigger for diagnostics.
type Info struct {
	Name string
	Spec string
	Job  string
	Next time.Time
	Prev time.Time
}

func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Info, 0, len(s.bindings))
	for _, b := range s.bindings {
		it := Info{Name: b.name, Spec: b.raw, Job: b.job}
		if s.c != nil && b.entryID != 0 {
			e := s.c.Entry(b.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}
	return items
}
