package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/logging"
	"github.com/shift-lab/argus/pkg/utils/safe"
)

type Server struct {
	router              *chi.Mux
	uc                  *usecase.UseCases
	tenants             *model.TenantRegistry
	slackWebhookHandler *SlackWebhookHandler
	slackSigningSecret  string
}

type Options func(*Server)

// WithSlackWebhook enables the Slack Events API endpoint. Requests are
// rejected unless they carry a valid signature for the given secret.
func WithSlackWebhook(handler *SlackWebhookHandler, signingSecret string) Options {
	return func(s *Server) {
		s.slackWebhookHandler = handler
		s.slackSigningSecret = signingSecret
	}
}

func New(uc *usecase.UseCases, tenants *model.TenantRegistry, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		uc:      uc,
		tenants: tenants,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Slack webhook endpoint (if configured) - No auth required, uses signature verification
	if s.slackWebhookHandler != nil {
		r.Route("/hooks/slack", func(r chi.Router) {
			// Apply Slack signature verification middleware to all /hooks/slack/* routes
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))

			// Event webhook endpoint
			r.Post("/event", s.slackWebhookHandler.ServeHTTP)
		})
	}

	// Query and correction API
	r.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/status", teamStatusHandler(s.uc))
		r.Post("/corrections", correctionHandler(s.uc))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/status", userStatusHandler(s.uc))
			r.Get("/events", historyHandler(s.uc))
			r.Get("/pattern", patternHandler(s.uc))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	safe.Write(r.Context(), w, []byte("OK"))
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
