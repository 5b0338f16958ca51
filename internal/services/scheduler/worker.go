package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "launcherd/pkg/logx"
)

const defaultHistorySize = 200

func (s *Service) enqueue(j job) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("scheduler not running; dropping job", logx.String("job", j.name))
		return
	}
	select {
	case q <- j:
		// ok
	default:
		s.log.Warn("scheduler queue full; dropping job", logx.String("job", j.name), logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan job) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.execOne(ctx, j)
		}
	}
}

func (s *Service) execOne(ctx context.Context, j job) {
	start := time.Now()

	// Mark running for overlap control (shared state between cron invocations).
	if j.state != nil {
		j.state.mu.Lock()
		j.state.running = true
		j.state.mu.Unlock()
		defer func() {
			j.state.mu.Lock()
			j.state.running = false
			j.state.mu.Unlock()
		}()
	}

	runCtx := ctx
	var cancel func()
	if j.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, j.timeout)
	}
	err := s.safeRun(j, runCtx)
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	item := HistoryItem{ID: j.id, Name: j.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", j.name), logx.Err(err), logx.Duration("dur", dur))
	} else {
		// Avoid noisy logs for very frequent jobs: only elevate to INFO when it took noticeable time.
		if dur >= 750*time.Millisecond {
			s.log.Info("job completed", logx.String("job", j.name), logx.Duration("dur", dur))
		} else {
			s.log.Debug("job completed", logx.String("job", j.name), logx.Duration("dur", dur))
		}
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	if len(s.history) > defaultHistorySize {
		s.history = s.history[len(s.history)-defaultHistorySize:]
	}
}

// safeRun executes a job body, converting a panic into an error so one bad
// job cannot take a worker down with it.
func (s *Service) safeRun(j job, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in job", logx.String("job", j.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.run(ctx)
}
