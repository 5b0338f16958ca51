// Package launcher collects named background tasks during process
// initialization and starts them all at a single, well-defined point.
//
// # Overview
//
// Independent components call Register(name, run) while the host is
// assembling itself. Once the host has started its periodic-task runner
// and before it begins serving, it calls Launch() exactly once: one
// goroutine is started per registered task, in registration order, and
// Launch returns without waiting for any of them.
//
// # Lifecycle
//
// A Launcher moves through exactly two states: collecting (accepts
// registrations) and launched (terminal). Register after Launch and a
// second Launch both fail with ErrAlreadyLaunched, so ordering mistakes
// between components surface loudly instead of racing silently.
//
// # Boundary
//
// The launcher does not supervise its tasks. It never restarts a task,
// observes its exit, or collects a return value; a task runs until its
// own logic returns or the shutdown context is cancelled. A panicking
// task is contained and logged, nothing more. Hosts that need restart
// or health semantics should layer them inside the task body.
package launcher
