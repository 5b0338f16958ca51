package storage

import (
	"context"
	"errors"
	"strings"

	logx "launcherd/pkg/logx"
)

// Journal is the minimal persistence API used by the workers.
type Journal interface {
	Append(ctx context.Context, e RunEntry) error
	Close() error
}

// Open initializes the configured journal.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Journal, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
