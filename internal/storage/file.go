package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "launcherd/pkg/logx"
)

// fileJournal is the dependency-free journal backend.
//
// It appends one JSON object per line to <path>.runs.jsonl. Writes go
// straight to the file; the OS page cache is plenty for the journal's
// low write rate.
type fileJournal struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
}

func openFile(cfg Config, log logx.Logger) (Journal, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	runsPath := filepath.Join(dir, base) + ".runs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	log.Debug("run journal opened", logx.String("driver", "file"), logx.String("path", runsPath))
	return &fileJournal{log: log, file: f}, nil
}

func (s *fileJournal) Append(ctx context.Context, e RunEntry) error {
	if s == nil {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrDisabled
	}
	_, err = s.file.Write(b)
	return err
}

func (s *fileJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
