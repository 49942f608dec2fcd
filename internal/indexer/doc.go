// Package indexer backfills snippet embeddings.
//
// Snippets normally get their vector when they are created or when their
// title, description or code changes. Rows written while no provider was
// configured, or imported straight into the database, have code but no
// vector and are invisible to semantic search. IndexMissing finds those rows
// for one user and embeds them in batches:
//
//	idx := indexer.New(store, emb, logger)
//	stats, err := idx.IndexMissing(ctx, "alice", &indexer.Config{Workers: 4})
//
// Each vector is written with a conditional update that only succeeds when
// the snippet text is unchanged since it was read, so a concurrent edit is
// never overwritten with a stale vector. Such rows are reported as skipped
// and picked up by the next run.
//
// Provider failures are recorded per snippet in Statistics.ErrorMessages and
// do not stop the run. Only one backfill runs at a time per Indexer; a
// second call returns ErrIndexingInProgress.
package indexer
