/*
errors.go - Centralized error types for the brokerage engine

PURPOSE:
  All error kinds in one place so callers can tell failures apart with
  errors.Is / errors.As instead of parsing messages.

ERROR CATEGORIES:
  1. Storage errors - Driver or connection failures (StorageError)
  2. Constraint errors - References to rows that do not exist
  3. Business errors - Duplicate sales, bad sale dates, bad periods

USAGE:
  sale, err := engine.RecordSale(ctx, listingID, buyerID, soldOn)
  var dup *brokerage.DuplicateSaleError
  if errors.As(err, &dup) {
      // listing dup.ListingID already closed
  }

SEE ALSO:
  - store/sqlite/sqlite.go: Maps driver errors onto these kinds
  - commission/engine.go: Returns them from write operations
*/
package brokerage

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateSale is returned when a sale is recorded against a listing
	// that is already sold.
	ErrDuplicateSale = errors.New("listing already sold")

	// ErrConstraintViolation is returned when a write references a row that
	// does not exist (missing listing, buyer, agent, office...).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNotFound is returned by single-row lookups.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMonthlyCommission is returned when a monthly total already
	// exists for the same (agent, period key).
	ErrDuplicateMonthlyCommission = errors.New("monthly commission already exists")

	// ErrInvalidSaleDate is returned when the sale date falls outside
	// [date of listing, today].
	ErrInvalidSaleDate = errors.New("invalid sale date")

	// ErrInvalidPeriod is returned for a month outside 1..12.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrStorage is the sentinel behind every StorageError.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateSaleError identifies the listing that was already sold.
type DuplicateSaleError struct {
	ListingID ListingID
}

func (e *DuplicateSaleError) Error() string {
	return fmt.Sprintf("listing %d already sold", e.ListingID)
}

func (e *DuplicateSaleError) Unwrap() error {
	return ErrDuplicateSale
}

// ConstraintError names the table and the reference that failed.
type ConstraintError struct {
	Table  string
	Detail string
	Err    error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("constraint violation on %s: %s: %v", e.Table, e.Detail, e.Err)
	}
	return fmt.Sprintf("constraint violation on %s: %s", e.Table, e.Detail)
}

func (e *ConstraintError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConstraintViolation}
	}
	return []error{ErrConstraintViolation, e.Err}
}

// StorageError wraps a connection or write failure. The unit of work that
// produced it has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateSale) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrInvalidSaleDate) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
