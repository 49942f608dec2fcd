package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/pkg/types"
)

type errorBody struct {
	Error   string        `json:"error"`
	Details []fieldDetail `json:"details,omitempty"`
}

type fieldDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to statuses. Unknown errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
	case errors.Is(err, types.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation error", Details: details(err)})
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Snippet not found"})
	case errors.Is(err, indexer.ErrIndexingInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, types.ErrProviderTimeout):
		s.logger.WarnContext(r.Context(), "provider timeout", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "AI provider timed out"})
	case errors.Is(err, types.ErrProvider):
		s.logger.WarnContext(r.Context(), "provider failure", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "AI provider unavailable"})
	case errors.Is(err, context.Canceled):
		s.logger.InfoContext(r.Context(), "request cancelled", "path", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Request cancelled"})
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

func details(err error) []fieldDetail {
	var many types.ValidationErrors
	if errors.As(err, &many) {
		out := make([]fieldDetail, 0, len(many))
		for _, e := range many {
			out = append(out, fieldDetail{Path: e.Field, Message: e.Message})
		}
		return out
	}
	var one *types.ValidationError
	if errors.As(err, &one) {
		return []fieldDetail{{Path: one.Field, Message: one.Message}}
	}
	return []fieldDetail{{Message: err.Error()}}
}

// decodeBody reads one JSON object into dst. Unknown fields and trailing
// data are validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return types.NewValidationError("body", "request body is required")
		}
		return types.NewValidationError("body", "invalid JSON: %v", err)
	}
	if dec.More() {
		return types.NewValidationError("body", "request body must contain a single JSON object")
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, types.NewValidationError(name, "%s must be a non-negative integer", name)
	}
	return n, nil
}
