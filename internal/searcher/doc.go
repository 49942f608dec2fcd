// Package searcher answers keyword and semantic queries over one user's
// snippets.
//
// # Keyword search
//
// The query is handed to the store as a case-insensitive substring match
// over title, description, code and language. Up to KeywordResultLimit
// snippets come back, newest first.
//
// # Semantic search
//
//  1. The query is embedded. Provider failure fails the search; there is no
//     fallback to keyword matching.
//  2. The CandidateLimit most recent snippets owned by the user are loaded.
//  3. Each candidate with a stored embedding is scored with cosine
//     similarity. Embeddings that cannot be parsed or compared are skipped,
//     logged and counted (see MalformedEmbeddings).
//  4. Candidates scoring strictly above RelevanceThreshold are kept, sorted
//     by similarity (stable, so ties stay most recent first) and cut to
//     SemanticResultLimit.
//
// Large candidate sets are scored in parallel with errgroup. Scores are
// written by candidate index, so the ranking is identical to a sequential
// pass.
//
// Only snippets older than the most recent CandidateLimit are invisible to
// semantic search; that is the price of scoring in process.
//
// # Usage
//
//	s := searcher.NewSearcher(store, emb, searcher.Options{Logger: logger})
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    UserID: "alice",
//	    Query:  "retry with backoff",
//	    Mode:   searcher.SearchModeSemantic,
//	})
package searcher
