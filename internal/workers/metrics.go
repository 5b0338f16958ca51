package workers

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"launcherd/internal/launcher"
	"launcherd/internal/storage"
	logx "launcherd/pkg/logx"
)

const defaultMetricsInterval = time.Minute

// MetricsFlush periodically samples process runtime stats and flushes
// them to the run journal. Journal writes are rate limited so a
// misconfigured (very short) interval cannot flood the journal.
type MetricsFlush struct {
	log      logx.Logger
	journal  storage.Journal
	interval time.Duration
	limiter  *rate.Limiter

	flushes atomic.Uint64
}

func NewMetricsFlush(interval time.Duration, ratePerSec int, log logx.Logger, journal storage.Journal) *MetricsFlush {
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &MetricsFlush{
		log:      log.With(logx.String("worker", "metrics_flush")),
		journal:  journal,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Register declares the worker to the launcher. Called during host
// assembly, before Launch.
func (m *MetricsFlush) Register(l *launcher.Launcher) error {
	return l.Register("metrics_flush", m.run)
}

// Flushes reports how many samples have been journaled. Diagnostics only.
func (m *MetricsFlush) Flushes() uint64 { return m.flushes.Load() }

func (m *MetricsFlush) run(ctx context.Context) {
	m.log.Info("started", logx.Duration("interval", m.interval))
	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("stopped")
			return
		case <-t.C:
			m.flush(ctx)
		}
	}
}

func (m *MetricsFlush) flush(ctx context.Context) {
	if m.journal == nil {
		return
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return
	}

	start := time.Now()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	detail, _ := json.Marshal(map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": ms.HeapAlloc,
		"num_gc":     ms.NumGC,
	})

	err := m.journal.Append(ctx, storage.RunEntry{
		Worker: "metrics_flush",
		Event:  "flush",
		OK:     true,
		TookMS: time.Since(start).Milliseconds(),
		Detail: string(detail),
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.log.Warn("journal append failed", logx.Err(err))
		}
		return
	}
	m.flushes.Add(1)
	m.log.Debug("flushed", logx.Uint64("n", m.flushes.Load()))
}
