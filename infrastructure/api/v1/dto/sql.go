// Package dto holds the request and response bodies of the v1 API.
package dto

import (
	"strings"

	"github.com/helixml/ticketsql/domain/ticket"
)

// TicketRequest identifies the ticket a statement answers. Ticket is the
// full text; Key, Summary and Description build it when Ticket is empty.
type TicketRequest struct {
	Ticket      string `json:"ticket,omitempty"`
	Key         string `json:"key,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
}

// Text returns the ticket text, or "" when nothing was supplied.
func (r TicketRequest) Text() string {
	if strings.TrimSpace(r.Ticket) != "" {
		return r.Ticket
	}
	if strings.TrimSpace(r.Summary) == "" && strings.TrimSpace(r.Description) == "" {
		return ""
	}
	return ticket.New(r.Key, r.Summary, r.Description).Text()
}

// GenerateRequest is the body of POST /sql/generate.
type GenerateRequest struct {
	TicketRequest
}

// ReviseRequest is the body of POST /sql/revise.
type ReviseRequest struct {
	TicketRequest
	SQL        string           `json:"sql"`
	History    []ticket.Comment `json:"history"`
	MaxRetries *int             `json:"max_retries,omitempty"`
}

// SQLRequest is the body of POST /sql/validate.
type SQLRequest struct {
	SQL string `json:"sql"`
}

// PreviewRequest is the body of POST /sql/preview.
type PreviewRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit,omitempty"`
}

// AssessRequest is the body of POST /assess.
type AssessRequest struct {
	TicketRequest
}

// ValidationResponse reports whether a statement passed the safety gate.
type ValidationResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// SchemaResponse describes catalog tables.
type SchemaResponse struct {
	Tables  []string `json:"tables"`
	Summary string   `json:"summary"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	LiveCatalog   bool   `json:"live_catalog"`
	IndexedValues int    `json:"indexed_values"`
}
