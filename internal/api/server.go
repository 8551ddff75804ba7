// Package api exposes the tracker, the balance engine and the importer over
// a local HTTP API for the web UI shell.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kyukei-panda/timescribe/internal/logging"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/status", h.GetStatus)

		// Timer routes
		r.Route("/timer", func(r chi.Router) {
			r.Post("/ping", h.Ping)
			r.Post("/{action}", h.Transition)
		})

		// Aggregate routes
		r.Get("/days/{date}", h.GetDay)
		r.Get("/weeks/{date}", h.GetWeek)
		r.Get("/months/{month}", h.GetMonth)
		r.Get("/years/{year}", h.GetYear)

		// Weekly balance routes
		r.Route("/balances", func(r chi.Router) {
			r.Get("/", h.ListBalances)
			r.Post("/recompute", h.Recompute)
		})

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Delete("/{id}", h.DeleteSchedule)
		})

		// Absence routes
		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/", h.CreateAbsence)
			r.Delete("/{id}", h.DeleteAbsence)
		})

		// Interval routes
		r.Route("/intervals", func(r chi.Router) {
			r.Get("/", h.ListIntervals)
			r.Delete("/{id}", h.DeleteInterval)
		})

		r.Post("/import/{source}", h.Import)
	})

	return r
}

// requestLogger carries chi's request ID into the logging context and logs
// one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-Id", logging.RequestIDFromContext(ctx))

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.FromContext(ctx).Info("request",
			logging.KeyMethod, r.Method,
			logging.KeyPath, r.URL.Path,
			logging.KeyStatus, ww.Status(),
			logging.KeyDuration, time.Since(start))
	})
}

// Server runs the API until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	base := context.WithoutCancel(ctx)
	s.srv.BaseContext = func(net.Listener) context.Context { return base }

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()
	logging.FromContext(ctx).Info("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
