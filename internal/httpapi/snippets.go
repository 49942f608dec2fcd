package httpapi

import (
	"net/http"

	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/pkg/types"
)

// createSnippetRequest lists the fields a client may set on create. Server
// managed fields such as ids, counters and the embedding are rejected.
type createSnippetRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
	Framework   *string  `json:"framework"`
	Complexity  *string  `json:"complexity"`
	IsPublic    bool     `json:"isPublic"`
	IsFavorite  bool     `json:"isFavorite"`
}

func (c createSnippetRequest) snippet() *types.Snippet {
	return &types.Snippet{
		Title:       c.Title,
		Description: c.Description,
		Code:        c.Code,
		Language:    c.Language,
		Tags:        c.Tags,
		Framework:   c.Framework,
		Complexity:  c.Complexity,
		IsPublic:    c.IsPublic,
		IsFavorite:  c.IsFavorite,
	}
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.deps.Snippets.List(r.Context(), userID, storage.ListOptions{
		Limit:         limit,
		Offset:        offset,
		Language:      r.URL.Query().Get("language"),
		FavoritesOnly: r.URL.Query().Get("favorite") == "true",
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request, userID string) {
	var req createSnippetRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.deps.Snippets.Create(r.Context(), userID, req.snippet())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request, userID string) {
	snippet, err := s.deps.Snippets.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

func (s *Server) handleUpdateSnippet(w http.ResponseWriter, r *http.Request, userID string) {
	var patch types.SnippetPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.deps.Snippets.Update(r.Context(), userID, r.PathValue("id"), &patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.deps.Snippets.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Snippet deleted successfully"})
}

func (s *Server) handleUseSnippet(w http.ResponseWriter, r *http.Request, userID string) {
	snippet, err := s.deps.Snippets.RecordUsage(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// handleSearch returns the matching snippets as a bare array. Only
// semantic=true selects semantic mode.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, userID string) {
	mode := searcher.SearchModeKeyword
	if r.URL.Query().Get("semantic") == "true" {
		mode = searcher.SearchModeSemantic
	}

	resp, err := s.deps.Searcher.Search(r.Context(), searcher.SearchRequest{
		UserID: userID,
		Query:  r.URL.Query().Get("q"),
		Mode:   mode,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("X-Search-Mode", string(resp.SearchMode))
	w.Header().Set("X-Search-Duration", resp.Duration.String())
	writeJSON(w, http.StatusOK, resp.Results)
}

type statsResponse struct {
	*types.SnippetStats
	MalformedEmbeddings int64 `json:"malformedEmbeddings"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := s.deps.Snippets.Stats(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		SnippetStats:        stats,
		MalformedEmbeddings: s.deps.Searcher.MalformedEmbeddings(),
	})
}
