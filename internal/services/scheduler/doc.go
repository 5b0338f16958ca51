// Package scheduler provides launcherd's in-process periodic-task runner.
//
// # Overview
//
// Jobs are registered under a logical name (e.g. "journal:prune") with a
// cron spec or a fixed interval, and run on a small worker pool. Names
// are stable and human readable so that jobs can be replaced (upserted)
// and removed deterministically.
//
// # Schedule formats
//
// The scheduler accepts multiple schedule syntaxes:
//
//   - Cron expressions: 5-field (min hour dom mon dow) or 6-field with
//     optional seconds. Example: "55 * * * *" or "0 */5 * * * *".
//   - Cron descriptors: "@hourly", "@daily", "@every 55m".
//   - Interval durations: Go duration strings like "55m" or "2h30m".
//
// To force interpretation, callers may prefix the string with "cron:" or
// "interval:".
//
// # Concurrency and overlap
//
// Jobs run on a worker pool with a per-job timeout. A run is skipped if
// the previous run of the same job is still executing.
//
// # Lifecycle
//
// The Service can be started/stopped at runtime (e.g. via config hot
// reload). Registering jobs while stopped is supported: definitions are
// stored and applied on the next start. The host starts this service
// before calling launcher.Launch, so periodic work is ticking by the
// time one-shot background tasks come up.
package scheduler
