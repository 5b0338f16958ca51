package launcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	logx "launcherd/pkg/logx"
)

// Runnable is the body of a background task. It receives the launcher's
// shutdown context and should return promptly once that context is done.
type Runnable func(ctx context.Context)

type entry struct {
	name string
	run  Runnable
}

// Launcher owns an insertion-ordered registry of named tasks and starts
// one goroutine per entry when Launch is called.
//
// Construct one per process with New and pass it by reference to the
// components that register tasks. Tests may construct as many as they
// like; nothing here is ambient global state.
type Launcher struct {
	log logx.Logger

	// baseCtx is handed to every launched task; Shutdown cancels it.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	entries    []entry
	names      map[string]struct{}
	launched   bool
	bound      bool
	dispatched int
}

type Option func(*Launcher)

func WithLogger(log logx.Logger) Option {
	return func(l *Launcher) { l.log = log }
}

func New(opts ...Option) *Launcher {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Launcher{
		baseCtx:    ctx,
		baseCancel: cancel,
		names:      map[string]struct{}{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Register appends a named task to the registry.
//
// It fails with ErrAlreadyLaunched once Launch has run, and with
// ErrDuplicateName if the name is already taken (the first entry wins).
// Register never blocks and never starts anything.
func (l *Launcher) Register(name string, run Runnable) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameEmpty
	}
	if run == nil {
		return fmt.Errorf("%w: %s", ErrNilRunnable, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launched {
		return fmt.Errorf("%w: register %q", ErrAlreadyLaunched, name)
	}
	if _, ok := l.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	l.names[name] = struct{}{}
	l.entries = append(l.entries, entry{name: name, run: run})
	return nil
}

// Launch starts one goroutine per registered task, in registration
// order, and returns without waiting for any task body to run. It
// transitions the launcher to its terminal state; a second call fails
// with ErrAlreadyLaunched and starts nothing.
//
// Per-task dispatch failures are logged and skipped: one bad entry must
// not keep the remaining tasks from starting. Panics inside a task body
// are contained by a recovery wrapper around each goroutine.
func (l *Launcher) Launch() error {
	l.mu.Lock()
	if l.launched {
		l.mu.Unlock()
		return ErrAlreadyLaunched
	}
	l.launched = true
	entries := make([]entry, len(l.entries))
	copy(entries, l.entries)
	ctx := l.baseCtx
	l.mu.Unlock()

	started := 0
	for _, e := range entries {
		if err := l.dispatch(ctx, e); err != nil {
			if !l.log.IsZero() {
				l.log.Error("task dispatch failed", logx.String("task", e.name), logx.Err(err))
			}
			continue
		}
		started++
		if !l.log.IsZero() {
			l.log.Debug("task dispatched", logx.String("task", e.name))
		}
	}

	l.mu.Lock()
	l.dispatched = started
	l.mu.Unlock()

	if !l.log.IsZero() {
		l.log.Info("background tasks launched", logx.Int("tasks", started), logx.Int("registered", len(entries)))
	}
	return nil
}

func (l *Launcher) dispatch(ctx context.Context, e entry) error {
	// Register rejects nil runnables, so this only trips if an entry was
	// corrupted; it is the one dispatch failure Go can actually surface.
	if e.run == nil {
		return &LaunchFailureError{Name: e.name, Err: ErrNilRunnable}
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if !l.log.IsZero() {
					l.log.Error("task panicked",
						logx.String("task", e.name),
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())),
					)
				}
			}
		}()
		e.run(ctx)
	}()
	return nil
}

// Shutdown notifies launched tasks of a pending shutdown by cancelling
// the context they were started with. It does not wait for tasks to
// exit; tasks are expected to make themselves joinable on their own.
func (l *Launcher) Shutdown() { l.baseCancel() }

// BindContext bridges ctx into the task shutdown context: when ctx is
// done, every launched task sees its own context cancelled. First
// non-nil bind wins. This lets the host tie task lifetime to its signal
// context without handing the launcher a short-lived one.
func (l *Launcher) BindContext(ctx context.Context) {
	l.mu.Lock()
	if l.bound || ctx == nil {
		l.mu.Unlock()
		return
	}
	l.bound = true
	cancel := l.baseCancel
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		cancel()
	}()
}

// Launched reports whether Launch has run.
func (l *Launcher) Launched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Names returns the registered task names in registration order.
func (l *Launcher) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.name)
	}
	return out
}

// Snapshot is a point-in-time view for observability/debug output, not
// a synchronization primitive.
type Snapshot struct {
	Launched   bool     `json:"launched"`
	Dispatched int      `json:"dispatched"`
	Tasks      []string `json:"tasks"`
}

func (l *Launcher) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		tasks = append(tasks, e.name)
	}
	return Snapshot{Launched: l.launched, Dispatched: l.dispatched, Tasks: tasks}
}
