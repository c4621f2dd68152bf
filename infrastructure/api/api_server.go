package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/ticketsql"
	apimiddleware "github.com/helixml/ticketsql/infrastructure/api/middleware"
	v1 "github.com/helixml/ticketsql/infrastructure/api/v1"
	"github.com/helixml/ticketsql/infrastructure/api/v1/dto"
	mcpinternal "github.com/helixml/ticketsql/internal/mcp"
)

// RequestTimeout bounds v1 API requests. Generation makes several model
// calls, so it is longer than a typical handler budget.
const RequestTimeout = 5 * time.Minute

// APIServer provides an HTTP API backed by a ticketsql Client.
type APIServer struct {
	client       *ticketsql.Client
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given Client. The
// client's API keys protect index rebuilds; every other endpoint is open.
func NewAPIServer(client *ticketsql.Client, version string) *APIServer {
	return &APIServer{
		client:  client,
		version: version,
		logger:  client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	sqlRouter := v1.NewSQLRouter(c)
	catalogRouter := v1.NewCatalogRouter(c)

	router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"https://*", "http://*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", apimiddleware.APIKeyHeader, apimiddleware.CorrelationHeader, "Mcp-Session-Id"},
			ExposedHeaders: []string{apimiddleware.CorrelationHeader, "Mcp-Session-Id"},
			MaxAge:         300,
		}))
		r.Use(apimiddleware.Correlation)
		r.Use(apimiddleware.Logging(a.logger))

		r.Get("/health", a.health)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(chimiddleware.Timeout(RequestTimeout))

			r.Mount("/sql", sqlRouter.Routes())
			r.Mount("/assess", catalogRouter.AssessRoutes())
			r.Mount("/schema", catalogRouter.SchemaRoutes())
			r.Mount("/index", catalogRouter.IndexRoutes())
		})

		// MCP streams responses and keeps session state in headers, which
		// chi's Timeout middleware breaks, so it sits outside /api/v1.
		mcpSrv := mcpinternal.NewServer(c, c, a.version, a.logger)
		r.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
	})
}

func (a *APIServer) health(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:        "healthy",
		Version:       a.version,
		LiveCatalog:   a.client.HasLiveCatalog(),
		IndexedValues: a.client.IndexedValues(),
	})
}

// DocsRouter returns a router for Swagger UI and the OpenAPI document,
// stamped with the server version.
func (a *APIServer) DocsRouter(specURL string) *DocsRouter {
	return NewDocsRouter(specURL, a.version)
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger, WithRequestTimeout(RequestTimeout))
	a.server = server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
