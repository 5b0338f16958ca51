package workers

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"launcherd/internal/launcher"
	"launcherd/internal/storage"
	logx "launcherd/pkg/logx"
)

const defaultHeartbeatInterval = 30 * time.Second

// Heartbeat periodically logs a liveness beat and records it in the run
// journal. Its main purpose is operational: a silent journal means the
// background machinery is wedged.
type Heartbeat struct {
	log      logx.Logger
	journal  storage.Journal
	interval time.Duration

	beats atomic.Uint64
}

func NewHeartbeat(interval time.Duration, log logx.Logger, journal storage.Journal) *Heartbeat {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Heartbeat{
		log:      log.With(logx.String("worker", "heartbeat")),
		journal:  journal,
		interval: interval,
	}
}

// Register declares the worker to the launcher. Called during host
// assembly, before Launch.
func (h *Heartbeat) Register(l *launcher.Launcher) error {
	return l.Register("heartbeat", h.run)
}

// Beats reports how many beats have fired. Diagnostics only.
func (h *Heartbeat) Beats() uint64 { return h.beats.Load() }

func (h *Heartbeat) run(ctx context.Context) {
	h.log.Info("started", logx.Duration("interval", h.interval))
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("stopped")
			return
		case <-t.C:
			n := h.beats.Add(1)
			h.log.Debug("beat", logx.Uint64("n", n))
			h.journalBeat(ctx, n)
		}
	}
}

func (h *Heartbeat) journalBeat(ctx context.Context, n uint64) {
	if h.journal == nil {
		return
	}
	err := h.journal.Append(ctx, storage.RunEntry{
		Worker: "heartbeat",
		Event:  "beat",
		OK:     true,
		Detail: strconv.FormatUint(n, 10),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn("journal append failed", logx.Err(err))
	}
}
