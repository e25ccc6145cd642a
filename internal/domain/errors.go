package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// Task errors
	ErrTaskNotFound            = errors.New("task not found")
	ErrInvalidStatusTransition = errors.New("invalid task status transition")
	ErrNoEnvironments          = errors.New("failed to create any forks")

	// Agent result errors
	ErrResultAlreadyRecorded = errors.New("agent result already recorded")

	// Generation errors
	ErrGenerationFailed = errors.New("generation request failed")
	ErrEmptyResponse    = errors.New("generation returned an empty response")
	ErrUndecodable      = errors.New("generation response is not a JSON object or array")

	// Retrieval errors
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorKind classifies a failure by the component boundary it crossed.
type ErrorKind string

const (
	KindProvisioning ErrorKind = "provisioning"
	KindGeneration   ErrorKind = "generation"
	KindRetrieval    ErrorKind = "retrieval"
	KindParse        ErrorKind = "parse"
	KindPersistence  ErrorKind = "persistence"
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindInternal     ErrorKind = "internal"
)

// DomainError wraps a cause with the kind of failure and the operation that
// produced it.
type DomainError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DomainError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &DomainError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost DomainError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether any DomainError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Kind == kind {
			return true
		}
		err = de.Err
	}
	return false
}
