// Package v1 wires the HTTP surface of the tuition service.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// Deps are the services behind the API. Cache and Ready entries are optional.
type Deps struct {
	Students student.Service
	Tuition  tuition.Service
	Feed     notify.Feed
	Sweeper  Sweeper
	History  history.Service
	Cache    DocumentCache
	Ready    []ReadyChecker
}

// Options configure the cross-cutting middleware.
type Options struct {
	CORSAllowedOrigins []string
	// JWTSecret enables bearer authentication on /v1 when non-empty.
	JWTSecret  string
	JWTIssuer  string
	SchoolName string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	students student.Service
	tuition  tuition.Service
	feed     notify.Feed
	sweeper  Sweeper
	history  history.Service
	cache    DocumentCache
	ready    []ReadyChecker
	opts     Options
	validate *validator.Validate
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(d Deps, opts Options, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		students: d.Students,
		tuition:  d.Tuition,
		feed:     d.Feed,
		sweeper:  d.Sweeper,
		history:  d.History,
		cache:    d.Cache,
		ready:    d.Ready,
		opts:     opts,
		validate: newValidator(),
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// Sweeper triggers one notification sweep on demand.
type Sweeper interface {
	Run(ctx context.Context) (notify.Report, error)
}

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())

	s.rt.Route("/v1", func(r chi.Router) {
		r.Get("/dictionary/{name}", s.getDictionary)

		r.Group(func(r chi.Router) {
			if mw := authJWT(s.opts.JWTSecret, s.opts.JWTIssuer); mw != nil {
				r.Use(mw)
			}
			// Students
			r.Post("/students", s.postStudent)
			r.Post("/students/batch", s.postStudentsBatch)
			r.Get("/students", s.listStudents)
			r.Get("/students/{id}", s.getStudent)
			r.Patch("/students/{id}", s.patchStudent)
			r.Delete("/students/{id}", s.deactivateStudent)
			r.Get("/students/{id}/ledgers", s.listStudentLedgers)
			r.Get("/students/{id}/history", s.getStudentHistory)
			// Ledgers
			r.Post("/ledgers", s.postLedger)
			r.Get("/ledgers", s.listLedgers)
			r.Get("/ledgers/{id}", s.getLedger)
			r.Patch("/ledgers/{id}", s.patchLedger)
			r.Delete("/ledgers/{id}", s.deleteLedger)
			// Payments
			r.Post("/ledgers/{id}/payments", s.postPayment)
			r.Patch("/ledgers/{id}/payments/{entryID}", s.patchPayment)
			r.Delete("/ledgers/{id}/payments/{entryID}", s.deletePayment)
			r.Get("/ledgers/{id}/payments/{entryID}/receipt", s.getReceipt)
			// Notifications
			r.Get("/notifications", s.listNotifications)
			r.Patch("/notifications/{id}/read", s.markNotificationRead)
			r.Delete("/notifications/{id}", s.deleteNotification)
			r.Post("/notifications/sweep", s.runSweep)
		})
	})
}
