package sinktrace

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/sinktrace/shield"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

// Router builds the HTTP surface of the tracer.
//
//	POST /v1/trace      run a trace for a canary
//	GET  /v1/sinks      list records matching ?canary= (optional ?max=)
//	POST /v1/sinks      ingest records
//	GET  /v1/sessions   list debugging sessions and their contexts
//	GET  /healthz       liveness
func (t *Tracer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Tracing is the expensive operation: each request can open browser
	// contexts, so it gets a per-IP limit the cheap endpoints don't need.
	rl := shield.NewRateLimiter(map[string]shield.RateLimitConfig{
		"POST /v1/trace": {MaxRequests: 30, Window: time.Minute},
	}, "/healthz")
	for _, mw := range shield.APIStack(rl) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/trace", t.handleTrace)
		r.Get("/sinks", t.handleQuerySinks)
		r.Post("/sinks", t.handleIngestSinks)
		r.Get("/sessions", t.handleSessions)
	})

	return r
}

type traceRequest struct {
	Canary   string `json:"canary"`
	MaxSinks int    `json:"max_sinks"`
	// ExtractCallstacks defaults to true; false runs discovery only.
	ExtractCallstacks *bool `json:"extract_callstacks"`
}

func (t *Tracer) handleTrace(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Canary == "" {
		writeError(w, http.StatusBadRequest, errors.New("canary is required"))
		return
	}

	extract := req.ExtractCallstacks == nil || *req.ExtractCallstacks
	rep, err := t.ProcessSinks(r.Context(), req.Canary, req.MaxSinks, extract)
	if err != nil {
		if errors.Is(err, ErrNoSinks) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("no sinks found for canary: %s", req.Canary),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (t *Tracer) handleQuerySinks(w http.ResponseWriter, r *http.Request) {
	canary := r.URL.Query().Get("canary")
	if canary == "" {
		writeError(w, http.StatusBadRequest, errors.New("canary query parameter is required"))
		return
	}

	recs, err := t.store.QueryCanary(r.Context(), canary, queryInt(r, "max", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := t.store.CountCanary(r.Context(), canary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_found": total, "records": recs})
}

func (t *Tracer) handleIngestSinks(w http.ResponseWriter, r *http.Request) {
	var records []sinkstore.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode records: %w", err))
		return
	}

	for i, rec := range records {
		if rec.DedupKey == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("record %d: dedup_key is required", i))
			return
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}
		if err := t.store.Put(r.Context(), rec); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("record %d: %w", i, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingested": len(records)})
}

func (t *Tracer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": t.Sessions()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
