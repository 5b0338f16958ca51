package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "launcherd/pkg/logx"
)

// AddSchedule parses schedule and registers either a cron or interval job.
//
// Supported schedule formats:
//   - Cron: "*/5 * * * *", "55 * * * *", "@hourly", "@every 55m"
//   - Interval duration: "55m", "2h30m"
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, run func(ctx context.Context) error) (string, error) {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return "", err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCron(name, ps.Cron, timeout, run)
	case SpecInterval:
		return s.AddInterval(name, ps.Every, timeout, run)
	default:
		return "", fmt.Errorf("unsupported schedule kind")
	}
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, run func(ctx context.Context) error) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Upsert by name: remove any previous schedule with the same name so
	// repeated registrations (e.g. across hot-reloads) don't accumulate.
	_ = s.removeScheduleLocked(name)
	id := fmt.Sprintf("cron:%d", time.Now().UnixNano())
	d := scheduleDef{
		id:      id,
		name:    name,
		spec:    spec,
		timeout: s.resolveTimeoutLocked(timeout),
		run:     run,
		state:   &runState{},
	}
	s.defs = append(s.defs, d)
	if s.c != nil {
		err := s.addCronLocked(&s.defs[len(s.defs)-1])
		if err != nil {
			s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		} else {
			s.log.Debug("schedule registered", logx.String("name", name), logx.String("id", id), logx.String("spec", spec), logx.Duration("timeout", d.timeout))
		}
		return id, err
	}
	// Scheduler not started/enabled yet: keep the definition and register it on Start().
	return id, nil
}

func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, run func(ctx context.Context) error) (string, error) {
	if every <= 0 {
		return "", errors.New("interval must be > 0")
	}
	return s.AddCron(name, fmt.Sprintf("@every %s", every.String()), timeout, run)
}

// Remove unschedules all schedules with the given name. It returns true if
// something was removed. Safe to call when the scheduler is not running.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// removeScheduleLocked removes all defs matching name and unregisters them
// from cron if running. Call with s.mu held.
func (s *Service) removeScheduleLocked(name string) bool {
	removed := false
	if s.c != nil {
		for i := range s.defs {
			if s.defs[i].name == name && s.defs[i].entryID != 0 {
				s.c.Remove(s.defs[i].entryID)
				s.defs[i].entryID = 0
				removed = true
			}
		}
	}
	// remove from persisted defs regardless of running state
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	if n < len(s.defs) {
		s.defs = s.defs[:n]
	}
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	eid, err := s.c.AddFunc(d.spec, func() {
		// Skip this tick if the previous run is still executing.
		d.state.mu.Lock()
		running := d.state.running
		d.state.mu.Unlock()
		if running {
			s.log.Debug("schedule skipped (previous run still running)", logx.String("job", d.name))
			return
		}
		s.enqueue(job{id: d.id, name: d.name, timeout: d.timeout, run: d.run, state: d.state})
	})
	if err == nil {
		d.entryID = eid
	}
	return err
}

func (s *Service) resolveTimeoutLocked(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	if s.cfg.DefaultTimeout > 0 {
		return s.cfg.DefaultTimeout
	}
	return 0
}
