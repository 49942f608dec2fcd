// Package types provides the shared domain types for snipvault.
//
// Snippet is the stored record. Every layer passes it around: storage,
// the search orchestrator, the snippet service and both transports.
// SnippetPatch describes a partial update:
//
//	patch := &types.SnippetPatch{IsFavorite: &yes}
//	if patch.TouchesEmbeddingText() {
//	    // title, description or code changed: recompute the embedding
//	}
//
// # Errors
//
// The error taxonomy lives here so adapters can classify failures with
// errors.Is without importing the packages that produced them:
//
//   - ErrValidation: bad input, including ValidationError values
//   - ErrNotFound: missing snippet or a snippet owned by another user
//   - ErrProvider and ErrProviderTimeout: embedding or completion failures
//   - ErrMalformedData: an unreadable stored embedding (internal only)
package types
