package frametask_test

import (
	"sync/atomic"
	"testing"
	"time"

	"frameq/internal/services/frametask"
	logx "frameq/pkg/logx"
)

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	svc := frametask.NewService(frametask.Config{Rate: 200}, logx.Nop(), nil)
	if svc.Scheduler() != nil {
		t.Fatal("Scheduler non-nil before Start")
	}

	svc.Start()
	defer svc.Stop()

	sched := svc.Scheduler()
	if sched == nil {
		t.Fatal("Scheduler nil after Start")
	}

	var ran atomic.Bool
	if err := sched.ScheduleFunc(func() { ran.Store(true) }); err != nil {
		t.Fatalf("ScheduleFunc: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !ran.Load() {
		if time.Now().After(deadline) {
			t.Fatal("task never executed by the ticker frame loop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	svc.Stop()
	if svc.Scheduler() != nil {
		t.Fatal("Scheduler non-nil after Stop")
	}
	if err := sched.ScheduleFunc(func() {}); err == nil {
		t.Fatal("old scheduler still accepts work after Stop")
	}
}

func TestServiceApplyRate(t *testing.T) {
	t.Parallel()

	svc := frametask.NewService(frametask.Config{Rate: 60}, logx.Nop(), nil)
	svc.Start()
	defer svc.Stop()

	svc.Apply(frametask.Config{Rate: 120})
	if got := svc.Scheduler().Rate(); got != 120 {
		t.Fatalf("Rate = %d after Apply, want 120", got)
	}
	if got := svc.Snapshot().Budget; got != time.Second/120 {
		t.Fatalf("Budget = %v, want %v", got, time.Second/120)
	}

	// Out-of-range rates fall back to the default.
	svc.Apply(frametask.Config{Rate: -5})
	if got := svc.Scheduler().Rate(); got != 60 {
		t.Fatalf("Rate = %d after bad Apply, want 60", got)
	}
}
