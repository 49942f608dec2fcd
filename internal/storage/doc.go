// Package storage persists snippets in SQLite or Postgres.
//
// Both backends share one database/sql implementation (SQLStorage). Queries
// are written with ? placeholders and rebound to $n for Postgres. Each
// backend carries its own migration DDL, versioned with semver and recorded
// in the schema_version table.
//
// # Drivers
//
// SQLite uses the pure Go modernc.org/sqlite driver by default. Building
// with the cgo_sqlite tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Postgres uses github.com/lib/pq.
//
// # Ownership
//
// Every operation takes the owning user id. A snippet owned by someone else
// is reported as ErrNotFound, exactly like a missing one.
//
// # Ordering
//
// Listings and search candidates are returned newest first. Rows created in
// the same instant are ordered by insertion sequence, newest first, so the
// order is total and stable across calls.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, "sqlite", "/var/lib/snipvault/snipvault.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	snippet := &types.Snippet{UserID: "alice", Title: "retry", Code: code, Language: "go"}
//	if err := store.CreateSnippet(ctx, snippet); err != nil {
//	    return err
//	}
//
//	recent, err := store.FindRecentByOwner(ctx, "alice", 1000)
//
// # Embeddings
//
// The embedding column holds a JSON array of floats (see package vector).
// SetEmbedding is a conditional write used by the backfill: it only
// succeeds when the snippet text still matches what was embedded and no
// vector has been stored in the meantime.
package storage
