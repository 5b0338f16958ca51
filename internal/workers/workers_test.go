package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"launcherd/internal/launcher"
	"launcherd/internal/storage"
	logx "launcherd/pkg/logx"
)

// memJournal collects entries in memory.
type memJournal struct {
	mu      sync.Mutex
	entries []storage.RunEntry
}

func (m *memJournal) Append(ctx context.Context, e storage.RunEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memJournal) Close() error { return nil }

func (m *memJournal) count(worker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Worker == worker {
			n++
		}
	}
	return n
}

func (m *memJournal) last(worker string) (storage.RunEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Worker == worker {
			return m.entries[i], true
		}
	}
	return storage.RunEntry{}, false
}

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

func TestHeartbeatBeatsAndStops(t *testing.T) {
	t.Parallel()
	j := &memJournal{}
	h := NewHeartbeat(10*time.Millisecond, logx.Nop(), j)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return j.count("heartbeat") >= 2 })
	if h.Beats() < 2 {
		t.Fatalf("beats = %d, want >= 2", h.Beats())
	}
	e, ok := j.last("heartbeat")
	if !ok || e.Event != "beat" || !e.OK {
		t.Fatalf("last entry = %+v", e)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop on cancel")
	}
}

func TestHeartbeatWithoutJournal(t *testing.T) {
	t.Parallel()
	h := NewHeartbeat(10*time.Millisecond, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return h.Beats() >= 1 })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop on cancel")
	}
}

func TestMetricsFlushRecordsRuntimeStats(t *testing.T) {
	t.Parallel()
	j := &memJournal{}
	m := NewMetricsFlush(10*time.Millisecond, 1000, logx.Nop(), j)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return m.Flushes() >= 1 })
	e, ok := j.last("metrics_flush")
	if !ok || e.Event != "flush" {
		t.Fatalf("last entry = %+v", e)
	}
	var detail map[string]any
	if err := json.Unmarshal([]byte(e.Detail), &detail); err != nil {
		t.Fatalf("detail not JSON: %v", err)
	}
	if _, ok := detail["goroutines"]; !ok {
		t.Fatalf("detail = %v, want goroutines", detail)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("metrics worker did not stop on cancel")
	}
}

func TestWorkersRegisterWithLauncher(t *testing.T) {
	t.Parallel()
	j := &memJournal{}
	l := launcher.New()

	h := NewHeartbeat(10*time.Millisecond, logx.Nop(), j)
	m := NewMetricsFlush(10*time.Millisecond, 1000, logx.Nop(), j)
	if err := h.Register(l); err != nil {
		t.Fatalf("register heartbeat: %v", err)
	}
	if err := m.Register(l); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	got := l.Names()
	want := []string{"heartbeat", "metrics_flush"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("names = %v, want %v", got, want)
	}

	if err := l.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return j.count("heartbeat") >= 1 && j.count("metrics_flush") >= 1
	})
	l.Shutdown()
}
