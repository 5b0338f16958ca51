//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "launcherd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// runRetention bounds journal growth; rows older than this are pruned
// opportunistically as writes come in.
const runRetention = 30 * 24 * time.Hour

type sqliteJournal struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Journal, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &sqliteJournal{db: db, log: log, pruneEvery: 500}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("run journal opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return j, nil
}

func (j *sqliteJournal) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, string(b))
	return err
}

func (j *sqliteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *sqliteJournal) Append(ctx context.Context, e RunEntry) error {
	if j == nil || j.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(at, worker, event, ok, err, took_ms, detail)
		 VALUES(?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Worker, e.Event, e.OK, nullStr(e.Error), e.TookMS, nullStr(e.Detail),
	)
	if err == nil && j.opCount.Add(1)%j.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = j.pruneOld(pctx)
		cancel()
	}
	return err
}

func (j *sqliteJournal) pruneOld(ctx context.Context) error {
	if j == nil || j.db == nil {
		return nil
	}
	cutoff := time.Now().Add(-runRetention).Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE at < ?`, cutoff)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
