package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "launcherd/pkg/logx"
)

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func TestAddUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())

	if _, err := s.AddInterval("job", time.Minute, 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddInterval("job", 2*time.Minute, 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Schedules) != 1 {
		t.Fatalf("schedules = %d, want 1 (upsert)", len(snap.Schedules))
	}
	if snap.Schedules[0].Spec != "@every 2m0s" {
		t.Fatalf("spec = %q, want the replacement", snap.Schedules[0].Spec)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	if _, err := s.AddCron("job", "*/5 * * * *", 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.Remove("job") {
		t.Fatal("expected removal")
	}
	if s.Remove("job") {
		t.Fatal("second removal should be a no-op")
	}
	if got := len(s.Snapshot().Schedules); got != 0 {
		t.Fatalf("schedules = %d, want 0", got)
	}
}

func TestDefsRegisteredWhileStoppedApplyOnStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Workers: 1}, logx.Nop())
	if _, err := s.AddCron("later", "*/5 * * * *", 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if next := s.Snapshot().Schedules[0].Next; !next.IsZero() {
		t.Fatalf("next = %v before start, want zero", next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if next := s.Snapshot().Schedules[0].Next; next.IsZero() {
		t.Fatal("next run not scheduled after Start")
	}
}

func TestEnqueuedJobRunsWithTimeout(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Workers: 2}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	var ok atomic.Int64
	s.enqueue(job{id: "t1", name: "ok", run: func(ctx context.Context) error {
		ok.Add(1)
		return nil
	}, state: &runState{}})
	waitFor(t, 2*time.Second, func() bool { return ok.Load() == 1 })

	// A job that outlives its timeout must be cancelled and recorded as failed.
	s.enqueue(job{id: "t2", name: "slow", timeout: 20 * time.Millisecond, run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, state: &runState{}})
	waitFor(t, 2*time.Second, func() bool {
		for _, h := range s.Snapshot().History {
			if h.Name == "slow" && h.Error != "" {
				return true
			}
		}
		return false
	})
}

func TestPanickingJobIsContained(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.enqueue(job{id: "p", name: "panics", run: func(ctx context.Context) error { panic("boom") }, state: &runState{}})

	// The single worker must survive the panic and run the next job.
	var after atomic.Int64
	waitFor(t, 2*time.Second, func() bool {
		for _, h := range s.Snapshot().History {
			if h.Name == "panics" && h.Error != "" {
				return true
			}
		}
		return false
	})
	s.enqueue(job{id: "n", name: "next", run: func(ctx context.Context) error {
		after.Add(1)
		return nil
	}, state: &runState{}})
	waitFor(t, 2*time.Second, func() bool { return after.Load() == 1 })
}

func TestStopThenStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	s.Stop(stopCtx)
	stopCancel()

	// Must be restartable after a full stop.
	s.Start(ctx)
	defer s.Stop(context.Background())

	var runs atomic.Int64
	s.enqueue(job{id: "r", name: "after-restart", run: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, state: &runState{}})
	waitFor(t, 2*time.Second, func() bool { return runs.Load() == 1 })
}

func TestAddIntervalRejectsNonPositive(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	if _, err := s.AddInterval("bad", 0, 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.AddCron("", "*/5 * * * *", 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
}
