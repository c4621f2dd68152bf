package ticketsql

import (
	"errors"

	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/query"
)

// Exported errors for library consumers.
var (
	// ErrNoCatalog indicates neither a live catalog nor a schema snapshot was configured.
	ErrNoCatalog = errors.New("ticketsql: no catalog configured")

	// ErrNoLiveCatalog indicates the operation needs a live database connection.
	ErrNoLiveCatalog = errors.New("ticketsql: operation requires a live catalog")

	// ErrNoTextProvider indicates no text generation provider was configured.
	ErrNoTextProvider = errors.New("ticketsql: no text provider configured")

	// ErrNoEmbeddingProvider indicates no embedding provider or local model is available.
	ErrNoEmbeddingProvider = errors.New("ticketsql: no embedding provider available")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("ticketsql: client is closed")

	// ErrUnsafeSQL indicates a statement failed the read-only safety gate.
	ErrUnsafeSQL = query.ErrUnsafeSQL

	// ErrGenerationFailed indicates the generator produced no usable statement.
	ErrGenerationFailed = service.ErrGenerationFailed

	// ErrReviewFailed indicates the reviewer produced no usable statement.
	ErrReviewFailed = service.ErrReviewFailed
)

// StageError identifies the pipeline stage a failure came from.
type StageError = service.StageError

// Stage names a pipeline stage.
type Stage = service.Stage

// Pipeline stages reported by StageError.
const (
	StageIntrospection = service.StageIntrospection
	StageIndexing      = service.StageIndexing
	StageGeneration    = service.StageGeneration
	StageReview        = service.StageReview
	StageValidation    = service.StageValidation
)

// StageOf returns the stage err originated from, if any.
func StageOf(err error) (Stage, bool) {
	return service.StageOf(err)
}
