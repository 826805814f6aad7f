package frametask

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"frameq/internal/eventbus"
	"frameq/internal/frames"
	logx "frameq/pkg/logx"
)

// Scheduler owns the pending queue, the frame-budget policy, and the drain
// loop. See the package documentation for the scheduling model.
type Scheduler struct {
	mu    sync.Mutex
	queue []*Entry

	// frame is non-zero exactly while a frame request is outstanding with the
	// host. It is spent (zeroed) the moment the host delivers the callback.
	frame    frames.Handle
	draining bool
	tornDown bool

	rate        int
	development bool

	source  frames.Source
	clock   frames.Clock
	onError ErrorHook
	wrap    func(func())

	log logx.Logger
	bus eventbus.Bus

	frames   atomic.Uint64
	executed atomic.Uint64
	failed   atomic.Uint64
	overruns atomic.Uint64
}

// New creates a Scheduler. A nil Source is a programmer error and panics.
func New(opts Options) *Scheduler {
	if opts.Source == nil {
		panic("frametask: nil frame source")
	}
	if opts.Clock == nil {
		opts.Clock = frames.SystemClock{}
	}
	if opts.Rate < 1 || opts.Rate > 1000 {
		opts.Rate = 60
	}
	if opts.OnError == nil {
		opts.OnError = DefaultErrorHook(opts.Log)
	}
	return &Scheduler{
		rate:        opts.Rate,
		development: opts.Development,
		source:      opts.Source,
		clock:       opts.Clock,
		onError:     opts.OnError,
		wrap:        opts.Wrap,
		log:         opts.Log,
		bus:         opts.Bus,
	}
}

// DefaultErrorHook reports task failures through log, flood-limited so a
// task that fails every frame cannot saturate the sinks.
func DefaultErrorHook(log logx.Logger) ErrorHook {
	lim := rate.NewLimiter(rate.Limit(5), 10)
	return func(err error, stack []byte) {
		if !lim.Allow() {
			return
		}
		log.Error("scheduled task failed", logx.Err(err), logx.Stack(string(stack)))
	}
}

// Schedule appends a task to the queue tail and, when the scheduler is idle,
// requests a host frame to begin draining. callable is a method name
// (resolved against target now, fail-fast) or a function value; target may
// be nil for bare functions.
func (s *Scheduler) Schedule(target, callable any, args ...any) error {
	return s.enqueue(target, callable, args, false)
}

// ScheduleFunc is the bare-function form of Schedule.
func (s *Scheduler) ScheduleFunc(fn any, args ...any) error {
	return s.enqueue(nil, fn, args, false)
}

// ScheduleOnce schedules like Schedule but collapses onto an already-pending
// entry with the same (target, callable) identity: the pending entry keeps
// its queue position and takes the new arguments. At most one pending entry
// exists per identity pair.
func (s *Scheduler) ScheduleOnce(target, callable any, args ...any) error {
	return s.enqueue(target, callable, args, true)
}

// ScheduleOnceFunc is the bare-function form of ScheduleOnce.
func (s *Scheduler) ScheduleOnceFunc(fn any, args ...any) error {
	return s.enqueue(nil, fn, args, true)
}

func (s *Scheduler) enqueue(target, callable any, args []any, once bool) error {
	fn, id, err := resolve(target, callable)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return ErrTornDown
	}

	var stack []byte
	if s.development {
		stack = debug.Stack()
	}

	if once {
		for _, e := range s.queue {
			if e.id.matches(id) {
				e.args = args
				e.stack = stack
				return nil
			}
		}
	}

	s.queue = append(s.queue, &Entry{
		target:   target,
		callable: callable,
		fn:       fn,
		id:       id,
		args:     args,
		stack:    stack,
	})
	if s.frame == 0 && !s.draining {
		s.frame = s.source.Request(s.drainFrame)
	}
	return nil
}

// Cancel removes every pending entry matching the (target, callable)
// identity and returns the removed entries. If the removal empties the queue
// while a frame request is outstanding, the request is released and the
// scheduler goes idle. A cancel that matches nothing mutates nothing.
func (s *Scheduler) Cancel(target, callable any) ([]*Entry, error) {
	_, id, err := resolve(target, callable)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*Entry
	kept := s.queue[:0]
	for _, e := range s.queue {
		if e.id.matches(id) {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept

	if len(removed) > 0 && len(s.queue) == 0 && s.frame != 0 {
		s.source.Cancel(s.frame)
		s.frame = 0
	}
	return removed, nil
}

// CancelFunc is the bare-function form of Cancel.
func (s *Scheduler) CancelFunc(fn any) ([]*Entry, error) {
	return s.Cancel(nil, fn)
}

// HasPendingTasks reports whether any entries are queued, independent of
// whether a drain is in flight.
func (s *Scheduler) HasPendingTasks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// Rate returns the configured frame rate.
func (s *Scheduler) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetRate changes the frame rate; the new budget applies from the next
// frame. Out-of-range values fall back to 60.
func (s *Scheduler) SetRate(r int) {
	if r < 1 || r > 1000 {
		r = 60
	}
	s.mu.Lock()
	s.rate = r
	s.mu.Unlock()
}

// Budget returns the per-frame time budget (1s/rate).
func (s *Scheduler) Budget() time.Duration {
	return frames.RatePeriod(s.Rate())
}

// OnError returns the current error hook.
func (s *Scheduler) OnError() ErrorHook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onError
}

// SetOnError replaces the error hook. A nil hook swallows failures.
func (s *Scheduler) SetOnError(h ErrorHook) {
	s.mu.Lock()
	s.onError = h
	s.mu.Unlock()
}

// Teardown stops the scheduler: remaining entries are dropped without
// executing and any outstanding frame request is released. A drain that is
// mid-flight notices at its next phase boundary. All further Schedule calls
// return ErrTornDown.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return
	}
	s.tornDown = true
	for i := range s.queue {
		s.queue[i] = nil
	}
	s.queue = nil
	if s.frame != 0 {
		s.source.Cancel(s.frame)
		s.frame = 0
	}
}

// drainFrame is the frame callback body: pop-then-execute from the live
// queue front until the queue empties, teardown is observed, or the elapsed
// time since frame start exceeds the budget. Operating on the live front is
// what makes re-entrant Schedule/ScheduleOnce/Cancel from inside a task
// naturally consistent.
func (s *Scheduler) drainFrame(start time.Time) {
	s.mu.Lock()
	if s.tornDown {
		s.frame = 0
		s.mu.Unlock()
		return
	}
	if s.draining {
		s.mu.Unlock()
		panic("frametask: frame drain re-entered")
	}
	s.draining = true
	s.frame = 0 // the request that carried us here is spent
	s.frames.Add(1)

	budget := frames.RatePeriod(s.rate)
	dev := s.development

	for len(s.queue) > 0 && !s.tornDown {
		e := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.execOne(e, budget, dev)

		s.mu.Lock()
		if s.clock.Now().Sub(start) >= budget {
			break
		}
	}

	s.draining = false
	if s.tornDown {
		s.mu.Unlock()
		return
	}

	if len(s.queue) > 0 {
		// Budget exhausted with work left: hand the remainder to the next frame.
		s.frame = s.source.Request(s.drainFrame)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeQueueDrained})
	}
}

// execOne runs a single entry in isolation: a panic or error result goes to
// the error hook and never disturbs the drain loop. In development mode the
// entry's own wall time is measured and a task that alone exceeds the frame
// budget is reported with its admission stack.
func (s *Scheduler) execOne(e *Entry, budget time.Duration, dev bool) {
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				s.reportFailure(e, panicError(r))
			}
		}()
		if err := e.invoke(); err != nil {
			s.reportFailure(e, err)
		}
	}

	body := run
	if s.wrap != nil {
		wrap := s.wrap
		body = func() { wrap(run) }
	}

	if !dev {
		body()
		s.executed.Add(1)
		return
	}

	t0 := s.clock.Now()
	body()
	took := s.clock.Now().Sub(t0)
	s.executed.Add(1)

	if took > budget {
		s.overruns.Add(1)
		s.log.Warn("task exceeded frame budget",
			logx.String("callable", e.callableName()),
			logx.Duration("took", took),
			logx.Duration("budget", budget),
			logx.Stack(string(e.stack)),
		)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeFrameOverrun,
				Data: eventbus.FrameOverrun{Callable: e.callableName(), Took: took, Budget: budget},
			})
		}
	}
}

func (s *Scheduler) reportFailure(e *Entry, err error) {
	s.failed.Add(1)
	if hook := s.OnError(); hook != nil {
		hook(err, e.stack)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeTaskFailed,
			Data: eventbus.TaskFailure{
				Target:   targetType(e.target),
				Callable: e.callableName(),
				Error:    err.Error(),
			},
		})
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

func targetType(t any) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%T", t)
}
