// Package api exposes enumeration jobs over HTTP: synchronous JSON results
// and a newline-delimited JSON event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/errs"
	"github.com/vulnverified/subsweep/internal/output"
	"github.com/vulnverified/subsweep/internal/wordlist"
)

// Version is reported by the root endpoint.
var Version = "dev"

const maxBodyBytes = 1 << 20

// Enumerator runs enumeration jobs. *engine.Coordinator satisfies it.
type Enumerator interface {
	Run(ctx context.Context, req engine.Request, emit func(engine.Event)) (*engine.Result, error)
	Start(ctx context.Context, req engine.Request) (*engine.Job, <-chan engine.Event)
}

// Options tune job admission.
type Options struct {
	// JobsPerMinute caps the sustained rate of accepted jobs. Zero or less
	// disables the limit.
	JobsPerMinute float64
	JobBurst      int
}

// Server routes API requests to an Enumerator and a passive source.
type Server struct {
	enum    Enumerator
	passive engine.PassiveSource
	limiter *rate.Limiter
	log     logrus.FieldLogger
	router  *mux.Router
}

// New builds a Server and its routes.
func New(enum Enumerator, passive engine.PassiveSource, opts Options, log logrus.FieldLogger) *Server {
	limit := rate.Inf
	if opts.JobsPerMinute > 0 {
		limit = rate.Limit(opts.JobsPerMinute / 60)
	}
	burst := opts.JobBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		enum:    enum,
		passive: passive,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)
	api.HandleFunc("/passive", s.handlePassive).Methods(http.MethodPost)
	api.HandleFunc("/enumerate", s.handleEnumerate).Methods(http.MethodPost)
	api.HandleFunc("/enumerate/stream", s.handleStream).Methods(http.MethodPost)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "subsweep",
		"version": Version,
		"endpoints": map[string]string{
			"enumerate": "/api/enumerate",
			"stream":    "/api/enumerate/stream",
			"passive":   "/api/passive",
			"presets":   "/api/presets",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type presetInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Filename *string `json:"filename"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	var out []presetInfo
	for _, p := range wordlist.Presets() {
		info := presetInfo{ID: p.ID, Name: p.Name}
		if p.File != "" {
			file := p.File
			info.Filename = &file
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": out})
}

type passiveRequest struct {
	Domain string `json:"domain"`
}

type passiveResponse struct {
	Count      int      `json:"count"`
	Subdomains []string `json:"subdomains"`
}

func (s *Server) handlePassive(w http.ResponseWriter, r *http.Request) {
	var req passiveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	domain, err := engine.NormalizeDomain(req.Domain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs := s.passive.Subdomains(r.Context(), domain)
	if subs == nil {
		subs = []string{}
	}
	writeJSON(w, http.StatusOK, passiveResponse{Count: len(subs), Subdomains: subs})
}

func (s *Server) handleEnumerate(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many enumeration jobs, retry later")
		return
	}

	var req engine.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.enum.Run(r.Context(), req, nil)
	if err != nil {
		switch {
		case errs.IsNotFound(err):
			writeError(w, http.StatusNotFound, err.Error())
		case errs.IsInvalidConfig(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "enumeration failed: "+err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStream runs a job and writes each event as one JSON line, flushing
// after every line. The response ends after the terminal event. A client
// disconnect cancels the job.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many enumeration jobs, retry later")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	send := func(e engine.Event) error {
		if err := output.WriteEvent(w, e); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	var req engine.Request
	if err := decodeBody(w, r, &req); err != nil {
		w.WriteHeader(http.StatusOK)
		_ = send(engine.ErrorEvent(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	job, events := s.enum.Start(ctx, req)
	w.Header().Set("X-Job-ID", job.ID)
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	log := s.log.WithField("job", job.ID)
	log.Debug("stream opened")
	if err := engine.Drain(ctx, events, send); err != nil {
		log.WithError(err).Debug("stream ended early")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errs.ErrTransport, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
