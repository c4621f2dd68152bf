package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/domain/ticket"
	"github.com/helixml/ticketsql/infrastructure/api/middleware"
	"github.com/helixml/ticketsql/infrastructure/api/v1/dto"
)

// SQLRouter handles statement generation, revision and checking.
type SQLRouter struct {
	client *ticketsql.Client
	logger *slog.Logger
}

// NewSQLRouter creates a new SQLRouter.
func NewSQLRouter(client *ticketsql.Client) *SQLRouter {
	return &SQLRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for statement endpoints.
func (r *SQLRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/generate", r.Generate)
	router.Post("/revise", r.Revise)
	router.Post("/validate", r.Validate)
	router.Post("/preview", r.Preview)

	return router
}

// Generate handles POST /api/v1/sql/generate.
//
//	@Summary		Generate SQL
//	@Description	Generate a reviewed, validated read-only statement for a ticket
//	@Tags			sql
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.GenerateRequest	true	"Ticket"
//	@Success		200		{object}	jsonapi.Document
//	@Failure		400		{object}	jsonapi.Document
//	@Failure		422		{object}	jsonapi.Document
//	@Failure		502		{object}	jsonapi.Document
//	@Router			/sql/generate [post]
func (r *SQLRouter) Generate(w http.ResponseWriter, req *http.Request) {
	var body dto.GenerateRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	text := body.Text()
	if text == "" {
		middleware.WriteError(w, req, required("ticket"), r.logger)
		return
	}

	result, err := r.client.Generate(req.Context(), text)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	writeData(w, req, result)
}

// Revise handles POST /api/v1/sql/revise.
//
//	@Summary		Revise SQL
//	@Description	Fold reviewer feedback into a statement; exhausted retries return it unchanged
//	@Tags			sql
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.ReviseRequest	true	"Statement and feedback"
//	@Success		200		{object}	jsonapi.Document
//	@Failure		400		{object}	jsonapi.Document
//	@Router			/sql/revise [post]
func (r *SQLRouter) Revise(w http.ResponseWriter, req *http.Request) {
	var body dto.ReviseRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.SQL) == "" {
		middleware.WriteError(w, req, required("sql"), r.logger)
		return
	}
	text := body.Text()
	if text == "" {
		middleware.WriteError(w, req, required("ticket"), r.logger)
		return
	}
	maxRetries := -1
	if body.MaxRetries != nil {
		maxRetries = *body.MaxRetries
	}

	revision, err := r.client.Revise(req.Context(), body.SQL, text, ticket.History(body.History), maxRetries)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	writeData(w, req, revision)
}

// Validate handles POST /api/v1/sql/validate. A rejected statement is a
// successful response with valid=false.
//
//	@Summary		Validate SQL
//	@Description	Check a statement against the read-only safety gate
//	@Tags			sql
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.SQLRequest	true	"Statement"
//	@Success		200		{object}	jsonapi.Document
//	@Failure		400		{object}	jsonapi.Document
//	@Router			/sql/validate [post]
func (r *SQLRouter) Validate(w http.ResponseWriter, req *http.Request) {
	var body dto.SQLRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.SQL) == "" {
		middleware.WriteError(w, req, required("sql"), r.logger)
		return
	}

	response := dto.ValidationResponse{Valid: true}
	if err := r.client.Validate(body.SQL); err != nil {
		response = dto.ValidationResponse{Valid: false, Reason: err.Error()}
	}
	writeData(w, req, response)
}

// Preview handles POST /api/v1/sql/preview.
//
//	@Summary		Preview SQL
//	@Description	Run a validated statement read-only and return the first rows
//	@Tags			sql
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.PreviewRequest	true	"Statement"
//	@Success		200		{object}	jsonapi.Document
//	@Failure		422		{object}	jsonapi.Document
//	@Failure		503		{object}	jsonapi.Document
//	@Router			/sql/preview [post]
func (r *SQLRouter) Preview(w http.ResponseWriter, req *http.Request) {
	var body dto.PreviewRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.SQL) == "" {
		middleware.WriteError(w, req, required("sql"), r.logger)
		return
	}

	rows, err := r.client.Preview(req.Context(), body.SQL, body.Limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	writeData(w, req, rows)
}
