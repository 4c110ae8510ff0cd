package models

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable marks failures of the upstream data provider.
var ErrProviderUnavailable = errors.New("data provider unavailable")

// DomainError reports a violated precondition of a valuation formula.
type DomainError struct {
	Op           string
	Precondition string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Precondition)
}

// NewDomainError builds a DomainError with a formatted precondition.
func NewDomainError(op, format string, args ...any) *DomainError {
	return &DomainError{Op: op, Precondition: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err wraps a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// PeerFetchError is a failed data fetch for one peer company.
type PeerFetchError struct {
	Ticker string
	Err    error
}

func (e *PeerFetchError) Error() string {
	return fmt.Sprintf("fetch peer %s: %v", e.Ticker, e.Err)
}

func (e *PeerFetchError) Unwrap() error { return e.Err }

// MissingDataError means a whole dataset is absent for a ticker.
type MissingDataError struct {
	Ticker string
	Field  string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: no %s data", e.Ticker, e.Field)
}
