package httpapi

import (
	"net/http"

	"github.com/dshills/snipvault/internal/indexer"
)

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type reembedRequest struct {
	Workers   int `json:"workers"`
	BatchSize int `json:"batchSize"`
	Limit     int `json:"limit"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, _ string) {
	var req codeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.deps.Assistant.Analyze(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request, _ string) {
	var req codeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	explanation, err := s.deps.Assistant.Explain(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request, _ string) {
	var req embedRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	vec, err := s.deps.Assistant.Embed(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]float32{"embedding": vec})
}

// handleReembed runs the embedding backfill for the caller. The body is
// optional.
func (s *Server) handleReembed(w http.ResponseWriter, r *http.Request, userID string) {
	var req reembedRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	stats, err := s.deps.Indexer.IndexMissing(r.Context(), userID, &indexer.Config{
		Workers:   req.Workers,
		BatchSize: req.BatchSize,
		Limit:     req.Limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
