package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors matched with errors.Is by callers.
var (
	ErrIntegrity        = errors.New("data integrity error")
	ErrNotFound         = errors.New("object not found")
	ErrCycleDetected    = errors.New("lineage cycle detected")
	ErrMalformedID      = errors.New("malformed identifier")
	ErrConflict         = errors.New("conflict")
	ErrAccessDenied     = errors.New("access denied")
	ErrInvalidAttribute = errors.New("invalid attribute")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

// NotFound builds a NotFoundError for an integer id.
func NotFound(entity EntityType, id int64) NotFoundError {
	return NotFoundError{Entity: entity, ID: strconv.FormatInt(id, 10)}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MalformedIDError is returned by the identifier codec when a token cannot be decoded.
type MalformedIDError struct {
	Token string
	Err   error
}

func (e MalformedIDError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed id %q: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("malformed id %q", e.Token)
}

// Is matches ErrMalformedID.
func (e MalformedIDError) Is(target error) bool { return target == ErrMalformedID }

func (e MalformedIDError) Unwrap() error { return e.Err }

// IntegrityError reports a stored parent reference that cannot be resolved
// to an integer id. It usually signals corrupted data.
type IntegrityError struct {
	SpecimenID int64
	Value      any
	Reason     string
	Err        error
}

func (e IntegrityError) Error() string {
	msg := fmt.Sprintf("specimen %d: unresolvable parent_id %v: %s", e.SpecimenID, e.Value, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrIntegrity.
func (e IntegrityError) Is(target error) bool { return target == ErrIntegrity }

func (e IntegrityError) Unwrap() error { return e.Err }

// CycleError reports a lineage chain that revisits a specimen.
type CycleError struct {
	SpecimenID int64
	Path       []int64
}

func (e CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("lineage cycle at specimen %d (path %s)", e.SpecimenID, strings.Join(parts, " -> "))
}

// Is matches ErrCycleDetected.
func (e CycleError) Is(target error) bool { return target == ErrCycleDetected }
