//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "launcherd/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Journal, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite storage not built: build with -tags sqlite")
}
