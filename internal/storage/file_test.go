package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "launcherd/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		j, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || j != nil {
			t.Fatalf("Open(%q) = (%v, %v), want (nil, nil)", driver, j, err)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileJournalAppend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "journal")

	j, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	now := time.Now()
	entries := []RunEntry{
		{At: now, Worker: "heartbeat", Event: "beat", OK: true},
		{Worker: "metrics_flush", Event: "flush", OK: false, Error: "disk full", TookMS: 12},
	}
	for _, e := range entries {
		if err := j.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	f, err := os.Open(path + ".runs.jsonl")
	if err != nil {
		t.Fatalf("open journal file: %v", err)
	}
	defer f.Close()

	var got []RunEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e RunEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad journal line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("lines = %d, want 2", len(got))
	}
	if got[0].Worker != "heartbeat" || got[0].Event != "beat" || !got[0].OK {
		t.Fatalf("first entry = %+v", got[0])
	}
	if got[1].Error != "disk full" || got[1].TookMS != 12 {
		t.Fatalf("second entry = %+v", got[1])
	}
	// Zero At is stamped on append.
	if got[1].At.IsZero() {
		t.Fatal("expected At to be stamped")
	}
}

func TestFileJournalClosed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	j, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "journal")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := j.Append(context.Background(), RunEntry{Worker: "w", Event: "e"}); err == nil {
		t.Fatal("expected error appending to closed journal")
	}
	// Close is idempotent.
	if err := j.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFileJournalRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileJournalRespectsContext(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	j, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "journal")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Append(ctx, RunEntry{Worker: "w", Event: "e"}); err == nil {
		t.Fatal("expected context error")
	}
}
