package api

import (
	"errors"
	"net/http"

	"cube-demo/internal/domain"
)

// httpStatusFromDomainError maps engine errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var unknown *domain.UnknownReferenceError
	var schema *domain.SchemaError
	var expression *domain.ExpressionError
	var duplicate *domain.DuplicateNameError
	var cyclic *domain.CyclicDependencyError
	var ambiguous *domain.AmbiguousJoinError
	var join *domain.JoinResolutionError

	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &schema), errors.As(err, &expression),
		errors.As(err, &duplicate), errors.As(err, &cyclic):
		return http.StatusBadRequest
	case errors.As(err, &ambiguous), errors.As(err, &join):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
