// CLAUDE:SUMMARY HTTP API on chi: generate, query, cache views, export/import.
package relocator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/relocator/internal/store"
	"github.com/hazyhaar/relocator/kit"
	"github.com/hazyhaar/relocator/selector"
)

// maxBodyBytes caps request bodies (page HTML, cache dumps).
const maxBodyBytes = 16 << 20

// Handler returns the HTTP API as a standalone router.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/generate", s.serveJSON(s.generateEndpoint(), func() any { return &generateRequest{} }))
	r.Post("/query", s.serveJSON(s.queryEndpoint(), func() any { return &queryRequest{} }))
	r.Get("/locators", s.handleKeys)
	r.Get("/locators/{key}", s.serveKey(s.currentEndpoint()))
	r.Get("/locators/{key}/history", s.serveKey(s.historyEndpoint()))
	r.Get("/stats", s.serveJSON(s.statsEndpoint(), nil))
	r.Get("/export", s.handleExport)
	r.Post("/import", s.handleImport)
}

// serveJSON decodes the body into newReq() (when non-nil), calls e and
// writes the JSON response.
func (s *Service) serveJSON(e kit.Endpoint, newReq func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req any
		if newReq != nil {
			req = newReq()
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}
		s.call(w, r, e, req)
	}
}

func (s *Service) serveKey(e kit.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.call(w, r, e, &keyRequest{Key: chi.URLParam(r, "key")})
	}
}

func (s *Service) call(w http.ResponseWriter, r *http.Request, e kit.Endpoint, req any) {
	ctx := requestContext(r)
	resp, err := e(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if notFound(resp) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// notFound reports a response describing a key with no cache entries.
func notFound(resp any) bool {
	switch v := resp.(type) {
	case *Entry:
		return v == nil
	case *historyResponse:
		return len(v.Entries) == 0
	}
	return false
}

func (s *Service) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Keys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	d, err := s.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Service) handleImport(w http.ResponseWriter, r *http.Request) {
	var d Dump
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&d); err != nil {
		http.Error(w, "invalid dump", http.StatusBadRequest)
		return
	}
	if err := s.Import(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(d)})
}

func requestContext(r *http.Request) context.Context {
	ctx := kit.WithTransport(r.Context(), "http")
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = kit.WithRequestID(ctx, id)
	}
	return ctx
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ErrNoMatch),
		errors.Is(err, selector.ErrMalformedExpression),
		errors.Is(err, store.ErrInvalidDump):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
