// Package api serves the provenance ledger over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/fairtrace/provenance/pkg/audit"
	"github.com/fairtrace/provenance/pkg/authz"
	"github.com/fairtrace/provenance/pkg/cache"
	"github.com/fairtrace/provenance/pkg/events"
	"github.com/fairtrace/provenance/pkg/ledger"
)

const (
	// BasePath prefixes every ledger route.
	BasePath = "/api/provenance/v1"
	// AuditBasePath prefixes the audit log routes.
	AuditBasePath = "/api/audit/v1"
)

// Server wires the ledger and its optional collaborators into one router.
type Server struct {
	ledger    *ledger.Ledger
	logger    *slog.Logger
	startedAt time.Time

	identity       func(http.Handler) http.Handler
	authorizer     authz.Authorizer
	broker         *events.Broker
	heartbeat      time.Duration
	auditStore     *audit.Store
	auditConfig    *audit.Config
	cache          *cache.Manager
	db             *gorm.DB
	allowedOrigins []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIdentity replaces the default X-Remote-User identity middleware.
func WithIdentity(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.identity = mw }
}

// WithAuthorizer guards the audit API and the event stream. The default
// authorizer allows every caller.
func WithAuthorizer(a authz.Authorizer) ServerOption {
	return func(s *Server) { s.authorizer = a }
}

// WithBroker exposes the broker's events at GET /events.
func WithBroker(b *events.Broker, heartbeat time.Duration) ServerOption {
	return func(s *Server) {
		s.broker = b
		s.heartbeat = heartbeat
	}
}

// WithAudit records mutating requests and mounts the audit API.
func WithAudit(store *audit.Store, cfg *audit.Config) ServerOption {
	return func(s *Server) {
		s.auditStore = store
		s.auditConfig = cfg
	}
}

// WithCache serves product, stakeholder and stats reads through m.
func WithCache(m *cache.Manager) ServerOption {
	return func(s *Server) { s.cache = m }
}

// WithDB makes /readyz ping the database.
func WithDB(db *gorm.DB) ServerOption {
	return func(s *Server) { s.db = db }
}

// WithAllowedOrigins sets the CORS origins. The default allows any http or
// https origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func NewServer(l *ledger.Ledger, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ledger:         l,
		logger:         logger,
		startedAt:      time.Now(),
		identity:       authz.IdentityMiddleware(),
		authorizer:     authz.AllowAll{},
		allowedOrigins: []string{"https://*", "http://*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Remote-User", "X-Remote-Group"},
		ExposedHeaders:   []string{"Link", "X-Cache"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.identity)

	if s.auditStore != nil && s.auditConfig != nil && s.auditConfig.Enabled {
		r.Use(audit.Middleware(s.auditStore, s.auditConfig, s.logger))
		s.logger.Info("audit middleware enabled",
			"logDenied", s.auditConfig.LogDenied,
			"retentionDays", s.auditConfig.RetentionDays)
	}

	r.Route(BasePath, func(r chi.Router) {
		cached := r.With(s.cache.Middleware())

		r.Post("/stakeholders", s.authorizeHandler)
		r.Delete("/stakeholders/{principal}", s.revokeHandler)
		cached.Get("/stakeholders/{principal}", s.stakeholderHandler)

		r.Post("/products", s.registerHandler)
		r.Post("/products/{handle}/stages", s.advanceHandler)
		cached.Get("/products/{handle}", s.provenanceHandler)
		cached.Get("/products/{handle}/totals", s.totalsHandler)
		cached.Get("/products/{handle}/carbon", s.carbonHandler)
		cached.Get("/products/{handle}/wages", s.wagesHandler)
		cached.Get("/products/{handle}/journey-length", s.journeyLengthHandler)

		r.Get("/stages", s.stagesHandler)
		cached.Get("/stats", s.statsHandler)

		if s.broker != nil {
			var stream http.Handler = &events.StreamHandler{
				Broker:    s.broker,
				Heartbeat: s.heartbeat,
				Logger:    s.logger,
			}
			if s.authorizer != nil {
				stream = authz.RequirePermission(s.authorizer, authz.ResourceEvents, authz.VerbStream)(stream)
			}
			r.Method("GET", "/events", stream)
		}
	})

	if s.auditStore != nil {
		r.Mount(AuditBasePath, audit.Router(s.auditStore, s.authorizer))
		s.logger.Info("mounted audit API routes")
	}

	r.Get("/healthz", s.healthHandler)
	r.Get("/livez", s.healthHandler)
	r.Get("/readyz", s.readyHandler)

	return r
}
