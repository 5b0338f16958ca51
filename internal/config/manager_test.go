package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  workers: 3
  default_timeout: 10s
workers:
  heartbeat:
    interval: 15s
  metrics:
    enabled: false
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Workers != 3 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Workers.Heartbeat.Interval != "15s" {
		t.Fatalf("heartbeat interval = %q", cfg.Workers.Heartbeat.Interval)
	}
	if EnabledOrDefault(cfg.Workers.Metrics.Enabled, true) {
		t.Fatal("metrics should be explicitly disabled")
	}
	if !EnabledOrDefault(cfg.Workers.Heartbeat.Enabled, true) {
		t.Fatal("omitted heartbeat.enabled should default to true")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{"logging":{"level":"info"},"no_such_section":{}}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{"logging":{"level":"info"}}{"again":true}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("scheduler.default_timeout", "90s")
	if err != nil || d != 90*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default got (%v, %v)", d, err)
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := Default()
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received wrong config pointer")
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	// Full buffer: oldest is dropped, newest delivered.
	first := Default()
	second := Default()
	m.publish(first)
	m.publish(second)
	select {
	case got := <-ch:
		if got != second {
			t.Fatal("expected newest config after overflow")
		}
	case <-time.After(time.Second):
		t.Fatal("no config published after overflow")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}
