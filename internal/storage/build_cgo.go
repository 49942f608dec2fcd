//go:build cgo_sqlite

package storage

// Compiled with the cgo_sqlite tag. Uses the C SQLite amalgamation.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use. It is go-sqlite3 registered
	// under its own name with the snipvault functions attached.
	DriverName = "sqlite3_snipvault"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(lowerFunc, func(v interface{}) interface{} {
				return foldValue(v)
			}, true)
		},
	})
}
