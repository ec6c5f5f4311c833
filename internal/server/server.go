// Package server builds the HTTP router and runs it.
//
// COMPOSITION ROOT:
// Build (wire.go) opens the store, creates the AWS and Google clients, the
// external mirror and every service. New takes those services and only
// decides which URL maps to which handler and which middleware guards it.
// Tests call New directly with services over an in-memory store.
//
// ENTRY POINTS:
//   - cmd/server calls Build then Start, which blocks until SIGINT/SIGTERM.
//   - cmd/lambda calls Build then hands Router() to the API Gateway adapter.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/recruiting-portal/internal/auth"
	"github.com/sakif/recruiting-portal/internal/config"
	"github.com/sakif/recruiting-portal/internal/handler"
	"github.com/sakif/recruiting-portal/internal/metrics"
	"github.com/sakif/recruiting-portal/internal/middleware"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
	"github.com/sakif/recruiting-portal/internal/service"
)

// Deps is everything the router needs. Closers run in order once the HTTP
// server has stopped (sync queue drain, database close).
type Deps struct {
	Tokens *auth.TokenService
	Users  repository.UserRepository

	Auth         *service.AuthService
	Profile      *service.ProfileService
	Applications *service.ApplicationService
	Events       *service.EventService
	Admin        *service.AdminService
	Feedback     *service.FeedbackService
	Conflicts    *service.ConflictService
	Dev          *service.DevService

	Metrics *metrics.Metrics
	Closers []func(context.Context) error
}

// Server owns the router and the resources behind it.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

// New builds the router. It does no I/O.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Router returns the root handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz, GET /preview, GET /metrics          open
//	POST /api/auth/{signup,login,google,logout}         open
//	POST /api/auth/refresh-token                        session
//	GET  /api/me, PATCH /api/me/profile, POST /api/me/internal-headshot   session
//	POST /api/uploads/headshot-url                      open, not gated
//	POST /api/uploads/internal-headshot-url             session, not gated
//	POST /api/application/submit-application            session
//	POST /api/events/event-signin                       session
//	POST /api/feedback, POST /api/conflict              session + member/admin
//	/api/admin/*                                        session + admin
//	/api/dev/*                                          session + admin, not mounted in production
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so the logger sees both. Logger wraps
// Recoverer so a recovered panic is still logged as a 500. The maintenance
// gate runs before any route except the health, preview, metrics and upload
// routes, and RequestSize caps every /api body.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(securityHeaders)
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", middleware.PreviewHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.MaintenanceGate(middleware.GateConfig{
		Locked:     s.cfg.PublicLock,
		PreviewKey: s.cfg.PreviewKey,
		Open:       []string{"/healthz", "/preview", "/metrics", "/api/uploads/"},
	}))

	r.NotFound(handler.NotFound)

	r.Get("/healthz", handler.Health(s.cfg.Port, s.cfg.Environment))
	r.Get("/preview", middleware.Preview(s.cfg.PreviewKey))
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	secure := s.cfg.IsProduction()
	authHandler := handler.NewAuthHandler(s.deps.Auth, secure, s.logger)
	profileHandler := handler.NewProfileHandler(s.deps.Profile, s.logger)
	candidateHandler := handler.NewCandidateHandler(s.deps.Applications, s.deps.Events, s.logger)
	adminHandler := handler.NewAdminHandler(s.deps.Admin, s.logger)
	staffHandler := handler.NewStaffHandler(s.deps.Feedback, s.deps.Conflicts, s.deps.Dev, s.logger)

	requireAuth := auth.RequireAuth(s.deps.Tokens, s.deps.Users, s.logger)
	adminOnly := auth.RequireRole(model.UsertypeAdmin)
	staffOnly := auth.RequireRole(model.UsertypeMember, model.UsertypeAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(s.cfg.MaxBodyBytes))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/google", authHandler.HandleGoogle)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Post("/refresh-token", authHandler.HandleRefresh)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", profileHandler.HandleMe)
			r.Patch("/profile", profileHandler.HandleProfile)
			r.Post("/internal-headshot", profileHandler.HandleInternalHeadshot)
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/headshot-url", profileHandler.HandleHeadshotURL)
			r.With(requireAuth).Post("/internal-headshot-url", profileHandler.HandleInternalHeadshotURL)
		})

		r.With(requireAuth).Post("/application/submit-application", candidateHandler.HandleSubmitApplication)
		r.With(requireAuth).Post("/events/event-signin", candidateHandler.HandleEventSignin)
		r.With(requireAuth, staffOnly).Post("/feedback", staffHandler.HandleFeedback)
		r.With(requireAuth, staffOnly).Post("/conflict", staffHandler.HandleConflict)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, adminOnly)
			r.Post("/set-event-code", adminHandler.HandleSetEventCode)
			r.Get("/get-event-codes", adminHandler.HandleGetEventCodes)
			r.Post("/event-codes", adminHandler.HandleReplaceEventCodes)
			r.Get("/config", adminHandler.HandleConfig)
			r.Get("/view-all-candidates", adminHandler.HandleViewAllCandidates)
			r.Get("/get-candidates-type/{decision}", adminHandler.HandleCandidatesByDecision)
			r.Get("/candidate-info/{userid}", adminHandler.HandleCandidateInfo)
			r.Post("/set-decision", adminHandler.HandleSetDecision)
			r.Get("/candidate-resume/{email}", adminHandler.HandleCandidateResume)
			r.Post("/fix-user-events", adminHandler.HandleFixUserEvents)
			r.Get("/candidate-spreadsheet", adminHandler.HandleCandidateSpreadsheet)
			r.Get("/feedback-spreadsheet", adminHandler.HandleFeedbackSpreadsheet)
		})

		if !s.cfg.IsProduction() {
			r.Route("/dev", func(r chi.Router) {
				r.Use(requireAuth, adminOnly)
				r.Post("/seed-event-codes", staffHandler.HandleSeedEventCodes)
				r.Post("/clear-events", staffHandler.HandleClearEvents)
				r.Post("/sheets-test", staffHandler.HandleSheetsTest)
			})
		}
	})
}

// securityHeaders sets the headers browsers use to harden responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting connections and wait for in-flight requests (30s).
//  2. Run the closers: drain the sync queue, then close the database.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Environment),
			slog.String("store", s.cfg.StoreBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = s.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = s.Close(ctx)
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.Close(ctx); err != nil {
			return err
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close runs the closers and joins their errors.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for _, c := range s.deps.Closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
