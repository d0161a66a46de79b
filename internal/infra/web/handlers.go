package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"asyncsql/internal/domain"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	Query string `json:"query"`
	Save  *bool  `json:"save"`
}

type submitResponse struct {
	ID int64 `json:"id"`
}

type fetchResponse struct {
	ID         int64       `json:"id"`
	ConnID     int         `json:"conn_id"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
	Columns    []string    `json:"columns,omitempty"`
	Rows       [][]*string `json:"rows,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	save := true
	if req.Save != nil {
		save = *req.Save
	}

	id, err := s.svc.Submit(req.Query, save)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("submit query")
		http.Error(w, "Failed to submit query", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{ID: id})
}

func (s *Server) handleListDone(w http.ResponseWriter, _ *http.Request) {
	ids := s.svc.ListDoneIDs()
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids})
}

// handleFetch releases a finished task and returns its rows. The result handle
// is freed before responding.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid query id", http.StatusBadRequest)
		return
	}

	f, err := s.svc.FetchAndRelease(id)
	switch {
	case errors.Is(err, domain.ErrNotReady):
		writeJSON(w, http.StatusAccepted, submitResponse{ID: id})
		return
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Query not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Failed to fetch query", http.StatusInternalServerError)
		return
	}

	resp := fetchResponse{ID: f.TaskID, ConnID: f.ConnID, DurationMs: f.Duration.Milliseconds()}
	if f.Err != nil {
		resp.Error = f.Err.Error()
	}
	if f.Handle > 0 {
		resp.Columns, resp.Rows = s.drain(f.Handle)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) drain(h int) ([]string, [][]*string) {
	defer func() {
		if err := s.svc.FreeResult(h); err != nil {
			s.log.Warn().Err(err).Int("handle", h).Msg("free result")
		}
	}()

	var cols []string
	for {
		name, ok, err := s.svc.FetchField(h)
		if err != nil || !ok {
			break
		}
		cols = append(cols, name)
	}
	rows := [][]*string{}
	for {
		row, ok, err := s.svc.FetchRow(h)
		if err != nil || !ok {
			break
		}
		rows = append(rows, row)
	}
	return cols, rows
}
