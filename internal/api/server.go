// Package api provides the HTTP API server and handlers for the PulseCheck application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pulsecheckapp/pulsecheck-server/internal/clock"
	"github.com/pulsecheckapp/pulsecheck-server/internal/ratelimit"
	"github.com/pulsecheckapp/pulsecheck-server/internal/search"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
)

// Version is the API version reported by health checks.
const Version = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         *store.Store
	services      *Services
	searchIndex   *search.SessionIndex
	sseManager    *sse.Manager
	sseHandler    *sse.Handler
	submitLimiter *ratelimit.KeyedRateLimiter
	router        *chi.Mux
	api           huma.API
	clock         clock.Clock
	logger        *slog.Logger
}

// Options configure the HTTP server.
type Options struct {
	SearchIndex *search.SessionIndex
	SSEManager  *sse.Manager
	SubmitRPS   float64
	SubmitBurst int
	Clock       clock.Clock
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, logger *slog.Logger, opts Options) *Server {
	if opts.SubmitRPS <= 0 {
		opts.SubmitRPS = 10
	}
	if opts.SubmitBurst <= 0 {
		opts.SubmitBurst = 30
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(services.Auth))

	humaConfig := huma.DefaultConfig("PulseCheck API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:         st,
		services:      services,
		searchIndex:   opts.SearchIndex,
		sseManager:    opts.SSEManager,
		submitLimiter: ratelimit.New(opts.SubmitRPS, opts.SubmitBurst),
		router:        router,
		api:           api,
		clock:         opts.Clock,
		logger:        logger,
	}

	if s.sseManager != nil {
		s.sseHandler = sse.NewHandler(s.sseManager, logger, s.sseIdentity)
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerMicroclimateRoutes()
	s.registerSearchRoutes()
	s.setupStreamRoute()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources.
func (s *Server) Close() {
	s.submitLimiter.Stop()
}

// setupStreamRoute mounts the SSE stream on the raw router; long-lived
// streaming does not fit the request/response codec.
func (s *Server) setupStreamRoute() {
	if s.sseHandler == nil {
		return
	}
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
}

// sseIdentity resolves the connecting user for event filtering. The auth
// middleware already ran, so claims are in the request context when the
// caller presented a valid token.
func (s *Server) sseIdentity(r *http.Request) (userID, companyID string, isManager bool) {
	claims, err := GetClaims(r.Context())
	if err != nil {
		return "", "", false
	}
	return claims.UserID, claims.CompanyID, claims.IsManager()
}
