package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the run journal.
//
// Driver values:
//   - "file": dependency-free JSONL backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records one observation from a background worker.
// Keep it compact and schema-stable.
type RunEntry struct {
	At     time.Time `json:"at"`
	Worker string    `json:"worker"`
	Event  string    `json:"event"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
	Detail string    `json:"detail,omitempty"`
}
