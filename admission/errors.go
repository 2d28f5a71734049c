/*
errors.go - Error taxonomy for request admission

PURPOSE:
  All admission outcomes other than success are errors. Three of them are
  business denials the caller must be able to tell apart; one is an
  infrastructure failure.

ERROR CATEGORIES:
  1. Denials (HTTP 400) - ErrInvalidQuantity, ErrDuplicateForDay,
     ErrMonthlyLimitExceeded
  2. Bad input (HTTP 400) - ErrUnknownReference
  3. Infrastructure (HTTP 500) - ErrStoreUnavailable

USAGE:
  req, err := engine.Admit(ctx, in)
  var limitErr *admission.MonthlyLimitError
  switch {
  case errors.As(err, &limitErr):
      // show limitErr.Total
  case admission.IsDenial(err):
      // 400
  case err != nil:
      // 500, log it
  }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package admission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidQuantity is returned when the quantity is not a whole number
	// in [1, MaxQuantity].
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrDuplicateForDay is returned when the CHW already requested the same
	// commodity on the same calendar day. Stores also return it when their
	// own uniqueness constraint rejects an insert.
	ErrDuplicateForDay = errors.New("duplicate request for day")

	// ErrMonthlyLimitExceeded is returned when the request would push the
	// month-to-date total above MonthlyLimit.
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")

	// ErrUnknownReference is returned by stores when the CHW or commodity
	// of an insert does not exist. It is a client error, not a denial.
	ErrUnknownReference = errors.New("unknown chw or commodity")

	// ErrStoreUnavailable is returned when the store cannot answer or write.
	// It is never retried by the engine.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidQuantityError carries the rejected quantity.
type InvalidQuantityError struct {
	Quantity decimal.Decimal
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a whole number between 1 and %d, got %s",
		MaxQuantity, e.Quantity.String())
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// DuplicateForDayError identifies the (CHW, commodity, day) triple that
// already has a request.
type DuplicateForDayError struct {
	CHWID       int64
	CommodityID int64
	Day         Day
}

func (e *DuplicateForDayError) Error() string {
	return fmt.Sprintf("only one request per CHW per commodity per day is allowed: chw %d, commodity %d, day %s",
		e.CHWID, e.CommodityID, e.Day)
}

func (e *DuplicateForDayError) Unwrap() error { return ErrDuplicateForDay }

// MonthlyLimitError carries the month-to-date total for display.
type MonthlyLimitError struct {
	CHWID       int64
	CommodityID int64
	Total       int
	Requested   int
	Limit       int
}

func (e *MonthlyLimitError) Error() string {
	return fmt.Sprintf("monthly limit of %d exceeded: current total %d, requested %d",
		e.Limit, e.Total, e.Requested)
}

func (e *MonthlyLimitError) Unwrap() error { return ErrMonthlyLimitExceeded }

// StoreError wraps a store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the category and the cause, so callers can match
// ErrStoreUnavailable as well as context.DeadlineExceeded.
func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDenial returns true for business-rule rejections.
func IsDenial(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrDuplicateForDay) ||
		errors.Is(err, ErrMonthlyLimitExceeded)
}

// IsStoreUnavailable returns true for infrastructure failures.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// DenialCode returns a stable machine-readable code for a denial,
// or "" when err is not a denial.
func DenialCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrDuplicateForDay):
		return "duplicate_for_day"
	case errors.Is(err, ErrMonthlyLimitExceeded):
		return "monthly_limit_exceeded"
	}
	return ""
}
