package config

// Config is the launcherd host configuration.
//
// The on-disk format is YAML or JSON (YAML is coerced to JSON before
// decoding so both go through the same strict decoder). All durations
// are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Workers   WorkersConfig   `json:"workers"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the periodic-task runner.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers,omitempty"`

	// DefaultTimeout bounds a single job run. "0s" disables it.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/London"
}

// StorageConfig controls the optional run journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./launcherd_journal" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// WorkersConfig configures the built-in background workers.
//
// Enabled is a pointer so "omitted" (default true) can be told apart
// from an explicit false.
type WorkersConfig struct {
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type HeartbeatConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"` // default "30s"
}

type MetricsConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"` // default "1m"

	// RatePerSec caps journal writes from the metrics worker.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// Default returns the config used when no file is present.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Console: true},
		Scheduler: SchedulerConfig{Enabled: true, Workers: 2},
	}
}

// EnabledOrDefault interprets an optional enabled flag.
func EnabledOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
