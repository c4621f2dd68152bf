// Package v1 implements the version 1 HTTP API.
package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helixml/ticketsql/infrastructure/api/jsonapi"
	"github.com/helixml/ticketsql/infrastructure/api/middleware"
	"github.com/helixml/ticketsql/internal/log"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeData writes data wrapped in a document carrying the correlation id.
func writeData(w http.ResponseWriter, req *http.Request, data any) {
	doc := jsonapi.NewDataResponse(data)
	if id := log.CorrelationID(req.Context()); id != "" {
		doc.Meta = &jsonapi.Meta{"correlation_id": id}
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// decode reads a JSON body into v. Malformed bodies are bad requests.
func decode(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return middleware.BadRequest("invalid request body", err)
	}
	return nil
}

func required(field string) error {
	return middleware.BadRequest(field+" is required", errors.New("missing "+field))
}
