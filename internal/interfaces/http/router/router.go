// Package router assembles the gin engine and mounts every handler.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// EngineConfig configures the middleware chain of the engine
type EngineConfig struct {
	ServiceName  string
	MaxBodyBytes int64
	// TracerProvider overrides the global provider when set
	TracerProvider trace.TracerProvider
	TracingEnabled bool
}

// NewEngine creates a gin engine with the standard middleware chain. Request
// IDs are assigned before tracing so that spans and logs share them.
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.TracingEnabled,
			TracerProvider: cfg.TracerProvider,
		}),
		middleware.SpanAttributes(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
	)
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}
	return engine
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	adminToken string
	public     []RouteRegistrar
	admin      []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAdminToken sets the bearer token guarding the admin API. Without it
// every admin request is rejected.
func WithAdminToken(token string) RouterOption {
	return func(r *Router) {
		r.adminToken = token
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a registrar mounted at the engine root
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.public = append(r.public, registrar)
	return r
}

// RegisterAdmin adds a registrar mounted under the authenticated API group
func (r *Router) RegisterAdmin(registrar RouteRegistrar) *Router {
	r.admin = append(r.admin, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	root := &r.engine.RouterGroup
	for _, registrar := range r.public {
		registrar.RegisterRoutes(root)
	}

	if len(r.admin) == 0 {
		return
	}
	api := r.engine.Group("/api/"+r.apiVersion, middleware.AdminAuth(r.adminToken))
	for _, registrar := range r.admin {
		registrar.RegisterRoutes(api)
	}
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
