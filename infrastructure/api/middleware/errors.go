package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/infrastructure/api/jsonapi"
	"github.com/helixml/ticketsql/infrastructure/provider"
	"github.com/helixml/ticketsql/internal/log"
)

// Sentinel errors for matching with errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrServer         = errors.New("server error")
	ErrBadRequest     = errors.New("bad request")
)

// APIError is an error carrying the HTTP status it maps to.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates an APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the cause.
func (e *APIError) Unwrap() error { return e.cause }

// AuthenticationError reports a missing or invalid API key.
type AuthenticationError struct {
	reason string
}

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{reason: reason}
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.reason
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ServerError reports an upstream or internal failure with a fixed status.
type ServerError struct {
	statusCode int
	message    string
}

// NewServerError creates a ServerError.
func NewServerError(statusCode int, message string) *ServerError {
	return &ServerError{statusCode: statusCode, message: message}
}

// StatusCode returns the HTTP status code.
func (e *ServerError) StatusCode() int { return e.statusCode }

// Message returns the client-facing message.
func (e *ServerError) Message() string { return e.message }

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.statusCode, e.message)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// BadRequest wraps err as a 400 error.
func BadRequest(message string, err error) error {
	return NewAPIError(http.StatusBadRequest, message, errors.Join(ErrBadRequest, err))
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var apiErr *APIError
	var serverErr *ServerError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var providerErr *provider.ProviderError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code()
	case errors.As(err, &serverErr):
		return serverErr.StatusCode()
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, query.ErrUnsafeSQL):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ticketsql.ErrNoTextProvider),
		errors.Is(err, ticketsql.ErrClientClosed),
		errors.Is(err, ticketsql.ErrNoEmbeddingProvider),
		errors.Is(err, ticketsql.ErrNoLiveCatalog),
		errors.Is(err, service.ErrNoLiveCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGenerationFailed),
		errors.Is(err, service.ErrReviewFailed),
		errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error document. Server-side failures are
// logged; client errors are not.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	status := StatusFor(err)

	detail := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Message()
	}

	e := jsonapi.NewError(strconv.Itoa(status), http.StatusText(status), detail)
	if stage, ok := service.StageOf(err); ok {
		e.Code = string(stage)
	}
	if id := log.CorrelationID(r.Context()); id != "" {
		e.Meta = &jsonapi.Meta{"correlation_id": id}
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	WriteJSON(w, status, jsonapi.NewErrorResponse(e))
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
