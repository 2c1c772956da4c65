// Package server exposes a prefix tree over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/google/go-symtrie/internal/config"
	"github.com/google/go-symtrie/prefixtree"
)

const requestIDHeader = "X-Request-ID"

// Server represents the HTTP API server.  The Index it serves must be safe
// for concurrent use, e.g. an index.Guarded.
type Server struct {
	idx    prefixtree.Index
	log    *zap.Logger
	cfg    config.ServerConfig
	router *mux.Router
}

// New creates a Server for idx.  Metrics are served from gatherer at /metrics
// when it is non-nil.
func New(idx prefixtree.Index, gatherer prometheus.Gatherer, logger *zap.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		idx: idx,
		log: logger,
		cfg: cfg,
	}

	r := mux.NewRouter().UseEncodedPath()
	r.Use(s.requestID, s.accessLog)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sequences/{seq}", s.putSequence).Methods(http.MethodPut)
	v1.HandleFunc("/sequences/{seq}", s.getSequence).Methods(http.MethodGet)
	v1.HandleFunc("/sequences/{seq}", s.patchSequence).Methods(http.MethodPatch)
	v1.HandleFunc("/sequences/{seq}", s.deleteSequence).Methods(http.MethodDelete)
	v1.HandleFunc("/paths/{seq}", s.getPath).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		})).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("serving", zap.String("addr", s.cfg.Addr), zap.String("index", s.idx.Name()))

	select {
	case err := <-errCh:
		return pkgerrors.Wrapf(err, "serving on %s", s.cfg.Addr)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down", zap.Duration("timeout", timeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return pkgerrors.Wrap(err, "shutting down")
	}
	return nil
}

type sequenceResponse struct {
	Sequence string `json:"sequence"`
	Data     any    `json:"data"`
}

type dataRequest struct {
	Data any `json:"data"`
}

type stepResponse struct {
	Depth     int    `json:"depth"`
	Symbol    string `json:"symbol,omitempty"`
	Reached   bool   `json:"reached"`
	EndOfWord bool   `json:"end_of_word"`
	Data      any    `json:"data,omitempty"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Symbol   string `json:"symbol,omitempty"`
	Position *int   `json:"position,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var ise *prefixtree.InvalidSymbolError
	if errors.As(err, &ise) {
		if !ise.Malformed {
			resp.Symbol = string(ise.Symbol)
		}
		resp.Position = &ise.Position
	}
	writeJSON(w, status, resp)
}

// sequence returns the URL-decoded {seq} path variable.
func sequence(r *http.Request) (string, error) {
	seq, err := url.PathUnescape(mux.Vars(r)["seq"])
	if err != nil {
		return "", pkgerrors.Wrap(err, "malformed sequence")
	}
	return seq, nil
}

// decodeData reads an optional {"data": ...} body.  A missing body yields nil.
func decodeData(r *http.Request) (any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req dataRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(err, "malformed body")
	}
	return req.Data, nil
}

func (s *Server) putSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := decodeData(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := s.idx.Store(seq, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, sequenceResponse{Sequence: seq, Data: stored})
}

func (s *Server) getSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, ok := s.idx.Search(seq)
	if !ok {
		writeError(w, http.StatusNotFound, pkgerrors.Errorf("sequence %q not found", seq))
		return
	}
	writeJSON(w, http.StatusOK, sequenceResponse{Sequence: seq, Data: data})
}

func (s *Server) patchSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := decodeData(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if data == nil {
		writeError(w, http.StatusBadRequest, pkgerrors.New("data is required"))
		return
	}
	if !s.idx.Update(seq, data) {
		writeError(w, http.StatusNotFound, pkgerrors.Errorf("sequence %q not found", seq))
		return
	}
	writeJSON(w, http.StatusOK, sequenceResponse{Sequence: seq, Data: data})
}

func (s *Server) deleteSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.idx.Delete(seq) {
		writeError(w, http.StatusNotFound, pkgerrors.Errorf("sequence %q not found", seq))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPath(w http.ResponseWriter, r *http.Request) {
	seq, err := sequence(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	steps := s.idx.Trace(seq)
	resp := make([]stepResponse, len(steps))
	for i, step := range steps {
		resp[i] = stepResponse{
			Depth:     step.Depth,
			Reached:   step.Reached,
			EndOfWord: step.EndOfWord,
			Data:      step.Data,
		}
		if step.Depth > 0 {
			resp[i].Symbol = string(step.Symbol)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sequence": seq, "steps": resp})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name": s.idx.Name(),
		"size": s.idx.Len(),
	})
}
