// Package storage provides launcherd's run journal: an append-only
// record of background-worker activity (beats, metric flushes, errors).
//
// Two drivers are supported:
//   - "file": dependency-free JSON Lines appender
//   - "sqlite": SQLite database file (optional build tag "sqlite")
//
// The journal is write-mostly; readers are external tools (jq, sqlite3).
package storage
