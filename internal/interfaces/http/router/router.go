// Package router assembles the gateway's gin engine.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/etribe/portal/internal/infrastructure/config"
	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
	"github.com/etribe/portal/internal/interfaces/http/handler"
	"github.com/etribe/portal/internal/interfaces/http/middleware"
)

// DefaultMaxBodySize limits JSON bodies; uploads carry their own limit
const DefaultMaxBodySize = handler.MaxDocumentSize + 1<<20

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig carries what the middleware stack needs
type EngineConfig struct {
	Env            string
	HTTP           config.HTTPConfig
	ServiceName    string
	TracingEnabled bool
	TracerProvider trace.TracerProvider
	Metrics        MetricsProvider
	Session        session.Store
	Logger         *zap.Logger
}

// MetricsProvider records gateway requests and serves the scrape endpoint
type MetricsProvider interface {
	middleware.GatewayObserver
	Handler() http.Handler
}

// NewEngine builds a gin engine with the gateway middleware stack, /health
// and /metrics. API routes are added through a Router.
//
// Middleware order:
//  1. RequestID
//  2. Recovery
//  3. Tracing (otelgin)
//  4. Logger
//  5. Metrics
//  6. CORS
//  7. BodyLimit
//  8. SessionUser
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName:    cfg.ServiceName,
		Enabled:        cfg.TracingEnabled,
		TracerProvider: cfg.TracerProvider,
	})...)
	engine.Use(logger.GinMiddleware(log))
	if cfg.Metrics != nil {
		engine.Use(middleware.Metrics(cfg.Metrics))
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.MaxAge = 12 * time.Hour
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(DefaultMaxBodySize))
	if cfg.Session != nil {
		engine.Use(middleware.SessionUser(cfg.Session))
		engine.GET("/health", handler.HealthHandler(cfg.Session))
	}
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	return engine
}
