package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"frameq/internal/config"
	"frameq/internal/eventbus"
	"frameq/internal/services/frametask"
	"frameq/internal/services/metronome"
	logx "frameq/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer logSvc.Close()
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	ft := frametask.NewService(
		frametask.Config{Rate: cfg.Frames.Rate, Development: cfg.Development()},
		log.With(logx.String("comp", "frametask")),
		bus,
	)
	met := metronome.NewService(log.With(logx.String("comp", "metronome")), bus, ft.Scheduler)

	// Built-in jobs available to metronome bindings in the config.
	rep := &reporter{log: log.With(logx.String("comp", "stats")), svc: ft}
	if err := met.Register("stats", rep, "LogSnapshot"); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := met.Register("memstats", nil, rep.logMemStats); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := met.Apply(cfg.Metronome); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ft.Start()
	met.Start()

	// Config hot reload: watch the file, fan validated updates out to services.
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()
	sub := mgr.Subscribe(1)
	go func() {
		for c := range sub {
			logSvc.Apply(logx.Config{
				Level:   c.Logging.Level,
				Console: c.Logging.Console,
				File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
			})
			ft.Apply(frametask.Config{Rate: c.Frames.Rate, Development: c.Development()})
			if err := met.Apply(c.Metronome); err != nil {
				log.Warn("metronome config rejected", logx.Err(err))
			}
		}
	}()

	log.Info("frameqd running", logx.String("config", cfgPath))
	<-ctx.Done()

	met.Stop()
	ft.Stop()
	mgr.Unsubscribe(sub)
}

// reporter holds the built-in diagnostic jobs. Both run on the frame queue,
// so they are also a live smoke test of the scheduler itself.
type reporter struct {
	log logx.Logger
	svc *frametask.Service
}

// LogSnapshot is bound by method name (config job "stats").
func (r *reporter) LogSnapshot() {
	s := r.svc.Snapshot()
	r.log.Info("frametask snapshot",
		logx.Int("rate", s.Rate),
		logx.Duration("budget", s.Budget),
		logx.Int("queue_len", s.QueueLen),
		logx.Uint64("frames", s.Frames),
		logx.Uint64("executed", s.Executed),
		logx.Uint64("failed", s.Failed),
		logx.Uint64("overruns", s.Overruns),
	)
}

func (r *reporter) logMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.log.Info("mem stats",
		logx.Uint64("heap_alloc", m.HeapAlloc),
		logx.Uint64("heap_objects", m.HeapObjects),
		logx.Uint64("gc_cycles", uint64(m.NumGC)),
		logx.Int("goroutines", runtime.NumGoroutine()),
	)
}
