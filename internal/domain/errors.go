// Package domain defines core types and errors for the cube engine.
package domain

import "fmt"

// SchemaError indicates an invalid table registration or relationship.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// AmbiguousJoinError indicates the relationship graph admits more than one
// join path between two tables, so no deterministic resolution exists.
type AmbiguousJoinError struct {
	Message string
}

func (e *AmbiguousJoinError) Error() string { return e.Message }

// JoinResolutionError indicates a query references tables that cannot be
// connected through declared relationships, or a join that exceeds bounds.
type JoinResolutionError struct {
	Message string
}

func (e *JoinResolutionError) Error() string { return e.Message }

// DuplicateNameError indicates a name collision within a registry.
type DuplicateNameError struct {
	Message string
}

func (e *DuplicateNameError) Error() string { return e.Message }

// UnknownReferenceError indicates a reference to an undefined metric,
// computed metric, dimension, or query.
type UnknownReferenceError struct {
	Message string
}

func (e *UnknownReferenceError) Error() string { return e.Message }

// CyclicDependencyError indicates a dependency cycle among computed metrics.
type CyclicDependencyError struct {
	Message string
}

func (e *CyclicDependencyError) Error() string { return e.Message }

// ExpressionError indicates a malformed or unresolvable expression.
type ExpressionError struct {
	Message string
}

func (e *ExpressionError) Error() string { return e.Message }

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrAmbiguousJoin creates an AmbiguousJoinError with a formatted message.
func ErrAmbiguousJoin(format string, args ...interface{}) *AmbiguousJoinError {
	return &AmbiguousJoinError{Message: fmt.Sprintf(format, args...)}
}

// ErrJoinResolution creates a JoinResolutionError with a formatted message.
func ErrJoinResolution(format string, args ...interface{}) *JoinResolutionError {
	return &JoinResolutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrDuplicateName creates a DuplicateNameError with a formatted message.
func ErrDuplicateName(format string, args ...interface{}) *DuplicateNameError {
	return &DuplicateNameError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownReference creates an UnknownReferenceError with a formatted message.
func ErrUnknownReference(format string, args ...interface{}) *UnknownReferenceError {
	return &UnknownReferenceError{Message: fmt.Sprintf(format, args...)}
}

// ErrCyclicDependency creates a CyclicDependencyError with a formatted message.
func ErrCyclicDependency(format string, args ...interface{}) *CyclicDependencyError {
	return &CyclicDependencyError{Message: fmt.Sprintf(format, args...)}
}

// ErrExpression creates an ExpressionError with a formatted message.
func ErrExpression(format string, args ...interface{}) *ExpressionError {
	return &ExpressionError{Message: fmt.Sprintf(format, args...)}
}
