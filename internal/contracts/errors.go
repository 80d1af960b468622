package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind error taxonomy of the scoring core
type ErrorKind string

const (
	// KindData missing/malformed facts; recovered locally with lower confidence
	KindData ErrorKind = "DATA"
	// KindComputation programmer error on a single record; counted, not fatal to the run
	KindComputation ErrorKind = "COMPUTATION"
	// KindCoordination lock unavailable; run is skipped
	KindCoordination ErrorKind = "COORDINATION"
	// KindPersistence store unavailable; run fails
	KindPersistence ErrorKind = "PERSISTENCE"
)

var (
	ErrMissingCompanyID = errors.New("company id is required")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrLockHeld         = errors.New("lock is held by another holder")
	ErrLockLost         = errors.New("lock no longer owned")
	ErrVersionConflict  = errors.New("score state version conflict")
	ErrInvalidInput     = errors.New("invalid input")
)

// ScoreError carries the taxonomy kind alongside the failing operation
type ScoreError struct {
	Kind      ErrorKind
	Op        string
	CompanyID string
	Err       error
}

func (e *ScoreError) Error() string {
	if e.CompanyID != "" {
		return fmt.Sprintf("%s [%s] company=%s: %v", e.Op, e.Kind, e.CompanyID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *ScoreError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind; nil stays nil
func NewError(kind ErrorKind, op, companyID string, err error) error {
	if err == nil {
		return nil
	}
	return &ScoreError{Kind: kind, Op: op, CompanyID: companyID, Err: err}
}

// KindOf classifies any error. Unknown errors are treated as persistence failures.
func KindOf(err error) ErrorKind {
	var se *ScoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrMissingCompanyID), errors.Is(err, ErrInvalidInput):
		return KindComputation
	case errors.Is(err, ErrCompanyNotFound):
		return KindData
	case errors.Is(err, ErrLockHeld), errors.Is(err, ErrLockLost), errors.Is(err, ErrVersionConflict):
		return KindCoordination
	default:
		return KindPersistence
	}
}

// IsRecordLevel reports whether err should be counted against a single company
// rather than abort the whole run
func IsRecordLevel(err error) bool {
	switch KindOf(err) {
	case KindData, KindComputation, KindCoordination:
		return true
	default:
		return false
	}
}
