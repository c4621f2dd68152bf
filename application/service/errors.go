package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline stages.
var (
	// ErrGenerationFailed indicates the model could not produce a draft.
	ErrGenerationFailed = errors.New("sql generation failed")

	// ErrReviewFailed indicates the model could not review or revise a statement.
	ErrReviewFailed = errors.New("sql review failed")

	// ErrMalformedResponse indicates model output did not match the response contract.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Stage names the pipeline step that failed.
type Stage string

// Pipeline stages.
const (
	StageIntrospection Stage = "introspection"
	StageIndexing      Stage = "indexing"
	StageGeneration    Stage = "generation"
	StageReview        Stage = "review"
	StageValidation    Stage = "validation"
)

// StageError is a terminal pipeline failure tagged with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

// NewStageError wraps err with stage. A nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
