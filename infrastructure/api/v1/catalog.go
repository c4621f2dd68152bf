package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/infrastructure/api/middleware"
	"github.com/helixml/ticketsql/infrastructure/api/v1/dto"
)

// CatalogRouter serves ticket assessment, schema description and index
// maintenance.
type CatalogRouter struct {
	client *ticketsql.Client
	logger *slog.Logger
}

// NewCatalogRouter creates a new CatalogRouter.
func NewCatalogRouter(client *ticketsql.Client) *CatalogRouter {
	return &CatalogRouter{
		client: client,
		logger: client.Logger(),
	}
}

// AssessRoutes returns the router mounted at /assess.
func (r *CatalogRouter) AssessRoutes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", r.Assess)
	return router
}

// SchemaRoutes returns the router mounted at /schema.
func (r *CatalogRouter) SchemaRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.Schema)
	return router
}

// IndexRoutes returns the router mounted at /index. Rebuilds need an API key
// when keys are configured.
func (r *CatalogRouter) IndexRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.WriteProtectAuth(r.client.APIKeys()))
	router.Post("/rebuild", r.Rebuild)
	return router
}

// Assess handles POST /api/v1/assess.
//
//	@Summary		Assess ticket
//	@Description	Judge whether a ticket can be answered from the catalog
//	@Tags			tickets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.AssessRequest	true	"Ticket"
//	@Success		200		{object}	jsonapi.Document
//	@Failure		400		{object}	jsonapi.Document
//	@Failure		502		{object}	jsonapi.Document
//	@Router			/assess [post]
func (r *CatalogRouter) Assess(w http.ResponseWriter, req *http.Request) {
	var body dto.AssessRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	text := body.Text()
	if text == "" {
		middleware.WriteError(w, req, required("ticket"), r.logger)
		return
	}

	assessment, err := r.client.Assess(req.Context(), text)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	writeData(w, req, assessment)
}

// Schema handles GET /api/v1/schema.
//
//	@Summary		Describe schema
//	@Description	Describe the named tables, or every table
//	@Tags			schema
//	@Produce		json
//	@Param			tables	query		string	false	"Comma separated table names"
//	@Success		200		{object}	jsonapi.Document
//	@Router			/schema [get]
func (r *CatalogRouter) Schema(w http.ResponseWriter, req *http.Request) {
	tables := splitList(req.URL.Query().Get("tables"))
	summary := r.client.DescribeSchema(req.Context(), tables...)

	if len(tables) == 0 {
		seen := map[string]bool{}
		for _, c := range r.client.Columns(req.Context()) {
			if !seen[c.Table] {
				seen[c.Table] = true
				tables = append(tables, c.Table)
			}
		}
	}
	writeData(w, req, dto.SchemaResponse{Tables: tables, Summary: summary})
}

// Rebuild handles POST /api/v1/index/rebuild.
//
//	@Summary		Rebuild index
//	@Description	Re-introspect the live catalog and rebuild the value index
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document
//	@Failure		401	{object}	jsonapi.Document
//	@Failure		503	{object}	jsonapi.Document
//	@Security		APIKeyAuth
//	@Router			/index/rebuild [post]
func (r *CatalogRouter) Rebuild(w http.ResponseWriter, req *http.Request) {
	report, err := r.client.RebuildIndex(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	writeData(w, req, report)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
