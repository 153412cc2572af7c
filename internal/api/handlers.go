package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapgold/internal/analytics"
	"github.com/leapstack-labs/leapgold/internal/engine"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		unknown    *core.UnknownRelationError
		inProgress *core.RefreshInProgressError
		param      *analytics.ParamError
	)
	switch {
	case errors.As(err, &unknown),
		errors.Is(err, analytics.ErrUnknownQuery),
		errors.Is(err, core.ErrRunNotFound),
		errors.Is(err, core.ErrNotMaterialized):
		return http.StatusNotFound
	case errors.As(err, &inProgress):
		return http.StatusConflict
	case errors.As(err, &param), errors.Is(err, core.ErrNotDerived):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"namespace": s.engine.Namespace(),
	})
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.Relations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// relationResponse is a relation's status with its current rows.
type relationResponse struct {
	*engine.RelationStatus
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	st, err := s.engine.Relation(ctx, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Read(ctx, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, relationResponse{
		RelationStatus: st,
		Rows:           res.JSONRecords(limit),
		Truncated:      limit > 0 && limit < len(res.Rows),
	})
}

// refreshRequest is the optional body of POST /refresh.
type refreshRequest struct {
	Select []string `json:"select"`
	// All recomputes every derived relation. Without it and without a
	// selection only stale relations are recomputed.
	All  bool `json:"all"`
	Load bool `json:"load"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	q := r.URL.Query()
	if q.Get("load") == "true" {
		req.Load = true
	}
	if q.Get("all") == "true" {
		req.All = true
	}
	if req.All && len(req.Select) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "all cannot be combined with select"})
		return
	}

	report, err := s.loadAndRefresh(r.Context(), req)
	if report == nil {
		s.writeError(w, r, err)
		return
	}
	// Relation failures are part of the report, not a request failure.
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleQueries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Queries().List())
}

// queryResponse is the result of an analytical query.
type queryResponse struct {
	Query    string            `json:"query"`
	Columns  core.Schema       `json:"columns"`
	Rows     []map[string]any  `json:"rows"`
	Versions map[string]uint64 `json:"versions"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}

	res, err := s.engine.Query(r.Context(), name, args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Query:    res.Query,
		Columns:  res.Columns,
		Rows:     res.JSONRecords(0),
		Versions: res.Versions,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	runs, err := s.engine.Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// runResponse is one run with its relation records.
type runResponse struct {
	*core.Run
	Relations []*core.RelationRun `json:"relations"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, relations, err := s.engine.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Run: run, Relations: relations})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
