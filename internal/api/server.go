// Package api exposes the HTTP interface for the petition service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openletter/petitiond/internal/config"
	"github.com/openletter/petitiond/internal/metrics"
	"github.com/openletter/petitiond/internal/petition"
	"github.com/openletter/petitiond/internal/render"
)

const contentTypeHTML = "text/html; charset=utf-8"

// Server wires HTTP handlers to the signatory store and page renderer.
type Server struct {
	router   chi.Router
	store    petition.SignatoryStore
	renderer *render.Renderer
	clock    petition.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store petition.SignatoryStore,
	renderer *render.Renderer,
	clock petition.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:    store,
		renderer: renderer,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", s.getIndex)
	r.Get("/privacy", s.getPrivacy)
	r.Get("/success", s.getSuccess)
	r.Post("/submit", s.postSubmit)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Readiness hinges on the store answering; the index queries are the
	// cheapest probe we have that exercises the pool.
	if _, err := s.store.ListQuotes(r.Context()); err != nil {
		s.logger.Warn("readiness probe failed", zap.Error(err))
		writeText(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

// getIndex renders the signatory listing with a random sample of quotes.
// Any store or render failure yields a 500 with no partial body.
func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	signatories, err := s.store.ListSignatories(r.Context())
	if err != nil {
		s.logger.Error("list signatories failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	quotes, err := s.store.ListQuotes(r.Context())
	if err != nil {
		s.logger.Error("list quotes failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, err := s.renderer.Render(render.PageIndex, render.IndexData{
		Signatories: signatories,
		Quotes:      quotes,
	})
	if err != nil {
		s.logger.Error("render index failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) getPrivacy(w http.ResponseWriter, _ *http.Request) {
	s.renderStatic(w, render.PagePrivacy)
}

func (s *Server) getSuccess(w http.ResponseWriter, _ *http.Request) {
	s.renderStatic(w, render.PageSuccess)
}

func (s *Server) renderStatic(w http.ResponseWriter, name string) {
	body, err := s.renderer.Render(name, nil)
	if err != nil {
		s.logger.Error("render page failed", zap.String("page", name), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// postSubmit accepts a signature form and redirects to /success.
// Parse, validation and store failures all answer 400 with no body
// detail; the store sub-cause is intentionally not distinguished.
func (s *Server) postSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	form := petition.SubmissionForm{
		Name:             r.PostFormValue("name"),
		Title:            r.PostFormValue("title"),
		Email:            r.PostFormValue("email"),
		Organisation:     r.PostFormValue("organisation"),
		URL:              r.PostFormValue("url"),
		Comments:         r.PostFormValue("comments"),
		MailingListOptIn: r.PostFormValue("mailing_list_opt_in"),
	}
	rec, err := petition.Normalize(form, s.clock.Now())
	if err != nil {
		s.logger.Info("submission rejected", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.store.Insert(r.Context(), rec); err != nil {
		s.logger.Warn("insert signatory failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	metrics.ObserveSignature()
	http.Redirect(w, r, "/success", http.StatusSeeOther)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
