package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/skill-verifier/internal/db"
	"github.com/jonathan/skill-verifier/internal/pipeline"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation    *ErrValidation
		pipelineInput *pipeline.ValidationError
		notFound      *ErrNotFound
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &pipelineInput):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, db.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
