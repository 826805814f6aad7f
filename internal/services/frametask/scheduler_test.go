package frametask_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"frameq/internal/eventbus"
	"frameq/internal/frames"
	"frameq/internal/services/frametask"
	logx "frameq/pkg/logx"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	sched  *frametask.Scheduler
	source *frames.Manual
	clock  *fakeClock
}

// step fires one frame at the clock's current time.
func (h *harness) step() int {
	return h.source.Step(h.clock.Now())
}

func newHarness(mod ...func(*frametask.Options)) *harness {
	source := frames.NewManual()
	clock := newFakeClock()
	opts := frametask.Options{
		Rate:   100, // 10ms budget: keeps the arithmetic in tests simple
		Source: source,
		Clock:  clock,
		Log:    logx.Nop(),
	}
	for _, m := range mod {
		m(&opts)
	}
	return &harness{sched: frametask.New(opts), source: source, clock: clock}
}

type recorder struct {
	calls []string
	args  []any
}

func (r *recorder) Note(v any) {
	r.calls = append(r.calls, "Note")
	r.args = append(r.args, v)
}

func (r *recorder) Other() {
	r.calls = append(r.calls, "Other")
}

func TestScheduleFIFO(t *testing.T) {
	t.Parallel()
	h := newHarness()

	var got []int
	for i := 1; i <= 5; i++ {
		i := i
		if err := h.sched.ScheduleFunc(func() { got = append(got, i) }); err != nil {
			t.Fatalf("ScheduleFunc: %v", err)
		}
	}

	if !h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = false before drain")
	}
	if h.source.Pending() != 1 {
		t.Fatalf("frame requests = %d, want 1 (no double-request)", h.source.Pending())
	}

	h.step()

	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("executed %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order %v, want %v", got, want)
		}
	}
	if h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = true after full drain")
	}
	if h.source.Pending() != 0 {
		t.Fatalf("frame request leaked: pending = %d", h.source.Pending())
	}

	// Idle scheduler requests a fresh frame on the next schedule.
	if err := h.sched.ScheduleFunc(func() { got = append(got, 6) }); err != nil {
		t.Fatalf("ScheduleFunc after idle: %v", err)
	}
	if h.source.Pending() != 1 {
		t.Fatalf("frame requests after re-schedule = %d, want 1", h.source.Pending())
	}
	h.step()
	if got[len(got)-1] != 6 {
		t.Fatalf("task scheduled after idle never ran: %v", got)
	}
}

func TestScheduleOnceCollapsesToFirstPosition(t *testing.T) {
	t.Parallel()
	h := newHarness()
	rec := &recorder{}

	if err := h.sched.ScheduleOnce(rec, "Note", 1); err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}
	if err := h.sched.Schedule(rec, "Other"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := h.sched.ScheduleOnce(rec, "Note", 2); err != nil {
		t.Fatalf("ScheduleOnce (dup): %v", err)
	}

	h.step()

	if len(rec.calls) != 2 || rec.calls[0] != "Note" || rec.calls[1] != "Other" {
		t.Fatalf("calls = %v, want [Note Other] (dup keeps first position)", rec.calls)
	}
	if len(rec.args) != 1 || rec.args[0] != 2 {
		t.Fatalf("args = %v, want [2] (dup takes latest args)", rec.args)
	}
}

func TestSchedulePlainDoesNotDedup(t *testing.T) {
	t.Parallel()
	h := newHarness()
	rec := &recorder{}

	if err := h.sched.Schedule(rec, "Note", "a"); err != nil {
		t.Fatal(err)
	}
	if err := h.sched.Schedule(rec, "Note", "b"); err != nil {
		t.Fatal(err)
	}

	h.step()

	if len(rec.args) != 2 || rec.args[0] != "a" || rec.args[1] != "b" {
		t.Fatalf("args = %v, want [a b]", rec.args)
	}
}

func TestCancelRemovesAllMatches(t *testing.T) {
	t.Parallel()
	h := newHarness()
	rec := &recorder{}

	_ = h.sched.Schedule(rec, "Note", 1)
	_ = h.sched.Schedule(rec, "Note", 2)
	_ = h.sched.Schedule(rec, "Other")

	removed, err := h.sched.Cancel(rec, "Note")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d entries, want 2", len(removed))
	}
	if removed[0].Args()[0] != 1 || removed[1].Args()[0] != 2 {
		t.Fatalf("removed args = %v, %v", removed[0].Args(), removed[1].Args())
	}

	h.step()
	if len(rec.calls) != 1 || rec.calls[0] != "Other" {
		t.Fatalf("calls = %v, want [Other]", rec.calls)
	}

	// After execution: pure no-op with an empty result.
	removed, err = h.sched.Cancel(rec, "Other")
	if err != nil {
		t.Fatalf("Cancel after exec: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("removed %d entries after execution, want 0", len(removed))
	}
}

func TestCancelEmptyingQueueReleasesFrame(t *testing.T) {
	t.Parallel()
	h := newHarness()
	rec := &recorder{}

	_ = h.sched.Schedule(rec, "Note", 1)
	if h.source.Pending() != 1 {
		t.Fatalf("pending frames = %d, want 1", h.source.Pending())
	}

	removed, err := h.sched.Cancel(rec, "Note")
	if err != nil || len(removed) != 1 {
		t.Fatalf("Cancel = %v, %v", removed, err)
	}
	if h.source.Pending() != 0 {
		t.Fatal("frame request not released by queue-emptying cancel")
	}
	if h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = true after cancel")
	}
}

func TestErrorIsolation(t *testing.T) {
	t.Parallel()
	h := newHarness()

	var hookErrs []error
	h.sched.SetOnError(func(err error, stack []byte) {
		hookErrs = append(hookErrs, err)
	})

	boom := errors.New("boom")
	ran := false
	_ = h.sched.ScheduleFunc(func() { panic("kapow") })
	_ = h.sched.ScheduleFunc(func() error { return boom })
	_ = h.sched.ScheduleFunc(func() { ran = true })

	h.step()

	if len(hookErrs) != 2 {
		t.Fatalf("hook notified %d times, want 2", len(hookErrs))
	}
	if !errors.Is(hookErrs[1], boom) {
		t.Fatalf("hook err = %v, want %v", hookErrs[1], boom)
	}
	if !ran {
		t.Fatal("task after failing tasks never ran")
	}

	// Nil hook swallows.
	h.sched.SetOnError(nil)
	_ = h.sched.ScheduleFunc(func() { panic("swallowed") })
	h.step()
	if len(hookErrs) != 2 {
		t.Fatalf("nil hook still notified: %d", len(hookErrs))
	}
}

func TestTaskFailurePublishesEvent(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	h := newHarness(func(o *frametask.Options) { o.Bus = bus })
	h.sched.SetOnError(nil)

	_ = h.sched.ScheduleFunc(func() { panic("kapow") })
	h.step()

	select {
	case e := <-ch:
		if e.Type != eventbus.TypeTaskFailed {
			t.Fatalf("event type = %s, want %s", e.Type, eventbus.TypeTaskFailed)
		}
	default:
		t.Fatal("no task_failed event published")
	}
}

func TestReentrantScheduleRunsSameFrameWithinBudget(t *testing.T) {
	t.Parallel()
	h := newHarness()

	var got []string
	_ = h.sched.ScheduleFunc(func() {
		got = append(got, "outer")
		_ = h.sched.ScheduleFunc(func() { got = append(got, "inner") })
	})

	h.step()
	if len(got) != 2 || got[1] != "inner" {
		t.Fatalf("got %v, want inner to run in the same frame", got)
	}
}

func TestReentrantScheduleSpillsWhenBudgetExhausted(t *testing.T) {
	t.Parallel()
	h := newHarness() // budget 10ms

	var got []string
	_ = h.sched.ScheduleFunc(func() {
		got = append(got, "outer")
		h.clock.Advance(20 * time.Millisecond) // burn the whole budget
		_ = h.sched.ScheduleFunc(func() { got = append(got, "inner") })
	})

	h.step()
	if len(got) != 1 {
		t.Fatalf("got %v, want only outer in first frame", got)
	}
	if !h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = false between frames")
	}
	if h.source.Pending() != 1 {
		t.Fatalf("pending frames = %d, want 1 re-request", h.source.Pending())
	}

	h.step()
	if len(got) != 2 || got[1] != "inner" {
		t.Fatalf("got %v, want inner in the next frame", got)
	}
	if h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = true after final drain")
	}
}

func TestReentrantCancelPreventsExecution(t *testing.T) {
	t.Parallel()
	h := newHarness()
	rec := &recorder{}

	_ = h.sched.ScheduleFunc(func() {
		if _, err := h.sched.Cancel(rec, "Note"); err != nil {
			t.Errorf("re-entrant Cancel: %v", err)
		}
	})
	_ = h.sched.Schedule(rec, "Note", 1)

	h.step()
	if len(rec.calls) != 0 {
		t.Fatalf("canceled task still ran: %v", rec.calls)
	}
}

func TestBudgetSpillsAcrossFrames(t *testing.T) {
	t.Parallel()
	h := newHarness() // rate 100 -> 10ms budget

	var got []int
	slow := func(i int) func() {
		return func() {
			got = append(got, i)
			h.clock.Advance(6 * time.Millisecond)
		}
	}
	for i := 1; i <= 3; i++ {
		_ = h.sched.ScheduleFunc(slow(i))
	}

	// Frame 1: task 1 (6ms elapsed, under budget), task 2 (12ms, over) -> stop.
	h.step()
	if len(got) != 2 {
		t.Fatalf("frame 1 executed %d tasks, want 2: %v", len(got), got)
	}
	if !h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = false with work left")
	}

	h.step()
	if len(got) != 3 {
		t.Fatalf("after frame 2 executed %d tasks, want 3", len(got))
	}
	if h.sched.HasPendingTasks() {
		t.Fatal("HasPendingTasks = true after final frame")
	}

	snap := h.sched.Snapshot()
	if snap.Frames != 2 || snap.Executed != 3 {
		t.Fatalf("snapshot frames=%d executed=%d, want 2/3", snap.Frames, snap.Executed)
	}
}

func TestFastTasksFitOneFrame(t *testing.T) {
	t.Parallel()
	h := newHarness()

	var n int
	for i := 0; i < 10; i++ {
		_ = h.sched.ScheduleFunc(func() {
			n++
			h.clock.Advance(500 * time.Microsecond)
		})
	}

	h.step()
	if n != 10 {
		t.Fatalf("executed %d tasks in one frame, want 10", n)
	}
	if snap := h.sched.Snapshot(); snap.Frames != 1 {
		t.Fatalf("frames = %d, want 1", snap.Frames)
	}
}

func TestTeardownDropsRemainingWork(t *testing.T) {
	t.Parallel()
	h := newHarness()

	ran := false
	_ = h.sched.ScheduleFunc(func() { ran = true })
	h.sched.Teardown()

	if h.source.Pending() != 0 {
		t.Fatal("teardown left a frame request outstanding")
	}
	h.step()
	if ran {
		t.Fatal("teardown executed a dropped task")
	}
	if err := h.sched.ScheduleFunc(func() {}); !errors.Is(err, frametask.ErrTornDown) {
		t.Fatalf("Schedule after teardown = %v, want ErrTornDown", err)
	}
}

func TestTeardownFromInsideTask(t *testing.T) {
	t.Parallel()
	h := newHarness()

	var got []int
	_ = h.sched.ScheduleFunc(func() {
		got = append(got, 1)
		h.sched.Teardown()
	})
	_ = h.sched.ScheduleFunc(func() { got = append(got, 2) })

	h.step()
	if len(got) != 1 {
		t.Fatalf("got %v, want teardown mid-drain to stop the frame", got)
	}
	if h.source.Pending() != 0 {
		t.Fatal("frame request leaked after mid-drain teardown")
	}
}

func TestScheduleOncePreservesDistinctIdentities(t *testing.T) {
	t.Parallel()
	h := newHarness()
	a, b := &recorder{}, &recorder{}

	_ = h.sched.ScheduleOnce(a, "Note", 1)
	_ = h.sched.ScheduleOnce(b, "Note", 2) // different target: separate entry
	_ = h.sched.ScheduleOnce(a, "Other")   // different method: separate entry

	h.step()
	if len(a.calls) != 2 || len(b.calls) != 1 {
		t.Fatalf("a=%v b=%v, want distinct identities each run once", a.calls, b.calls)
	}
}

func TestWrapEnclosesEachTask(t *testing.T) {
	t.Parallel()

	var trace []string
	h := newHarness(func(o *frametask.Options) {
		o.Wrap = func(body func()) {
			trace = append(trace, "begin")
			body()
			trace = append(trace, "end")
		}
	})

	_ = h.sched.ScheduleFunc(func() { trace = append(trace, "task1") })
	_ = h.sched.ScheduleFunc(func() { trace = append(trace, "task2") })
	h.step()

	want := []string{"begin", "task1", "end", "begin", "task2", "end"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestDevelopmentOverrunReporting(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	h := newHarness(func(o *frametask.Options) {
		o.Development = true
		o.Bus = bus
	})

	_ = h.sched.ScheduleFunc(func() { h.clock.Advance(50 * time.Millisecond) })
	h.step()

	var overruns int
	for {
		select {
		case e := <-ch:
			if e.Type == eventbus.TypeFrameOverrun {
				overruns++
			}
			continue
		default:
		}
		break
	}
	if overruns != 1 {
		t.Fatalf("overrun events = %d, want 1", overruns)
	}
	if snap := h.sched.Snapshot(); snap.Overruns != 1 {
		t.Fatalf("snapshot overruns = %d, want 1", snap.Overruns)
	}
}

func TestProductionSkipsOverrunAccounting(t *testing.T) {
	t.Parallel()
	h := newHarness() // Development defaults to false

	_ = h.sched.ScheduleFunc(func() { h.clock.Advance(50 * time.Millisecond) })
	h.step()

	if snap := h.sched.Snapshot(); snap.Overruns != 0 {
		t.Fatalf("overruns counted in production mode: %d", snap.Overruns)
	}
}

func TestRateChangeAppliesNextFrame(t *testing.T) {
	t.Parallel()
	h := newHarness()

	if h.sched.Rate() != 100 {
		t.Fatalf("Rate = %d, want 100", h.sched.Rate())
	}
	h.sched.SetRate(50)
	if h.sched.Budget() != 20*time.Millisecond {
		t.Fatalf("Budget = %v, want 20ms", h.sched.Budget())
	}

	// 15ms per task now fits under the 20ms budget for the first task.
	var n int
	for i := 0; i < 2; i++ {
		_ = h.sched.ScheduleFunc(func() {
			n++
			h.clock.Advance(15 * time.Millisecond)
		})
	}
	h.step()
	if n != 2 {
		t.Fatalf("executed %d tasks, want 2 (15ms < 20ms budget after first)", n)
	}
}
