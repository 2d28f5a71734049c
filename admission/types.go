/*
types.go - Core value types for request admission

PURPOSE:
  Defines the request record, its status lifecycle, and the calendar Day
  used to scope the daily and monthly rules.

DAY SEMANTICS:
  A Day is a calendar date in the server's local time zone. "Today" and
  "start of month" are always derived from one clock reading per admission
  attempt and passed down explicitly, so a decision never straddles a
  midnight rollover.

STATUS LIFECYCLE:
  Pending ──▶ Approved
     │
     └─────▶ Rejected

  No other transition exists. Approved and Rejected are terminal.

SEE ALSO:
  - engine.go: Uses Day to compute the check window
  - review/review.go: Applies status transitions
*/
package admission

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxQuantity is the largest quantity a single request may carry.
	MaxQuantity = 99

	// MonthlyLimit caps the sum of quantities per CHW and commodity
	// within one calendar month. Reaching it exactly is allowed.
	MonthlyLimit = 200
)

// =============================================================================
// DAY - Server-local calendar date
// =============================================================================

// Day is a calendar date at midnight in the location it was derived from.
type Day struct {
	t time.Time
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{t: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// NewDay builds a Day in server local time.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.Local)}
}

// DayLayout is the storage and display format of a Day.
const DayLayout = "2006-01-02"

func (d Day) MonthStart() Day { return Day{t: time.Date(d.t.Year(), d.t.Month(), 1, 0, 0, 0, 0, d.t.Location())} }
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) String() string { return d.t.Format(DayLayout) }
func (d Day) Equal(other Day) bool { return d.String() == other.String() }

// Before reports whether d is strictly earlier than other.
// The layout sorts lexicographically, so string order is date order.
func (d Day) Before(other Day) bool { return d.String() < other.String() }

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only Pending may move, and only to Approved or Rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is a persisted commodity request.
type Request struct {
	ID          int64
	CHWID       int64
	CommodityID int64
	Quantity    int
	RequestDate time.Time
	Status      Status
}

// Day returns the calendar day the request was recorded on.
func (r Request) Day() Day { return DayOf(r.RequestDate) }

// NewRequest is the payload for inserting a request.
type NewRequest struct {
	CHWID       int64
	CommodityID int64
	Quantity    int
	RequestDate time.Time
	Status      Status
}

// Input is an admission attempt as received from a caller.
// Quantity stays a decimal so fractional input can be detected and refused.
type Input struct {
	CHWID       int64
	CommodityID int64
	Quantity    decimal.Decimal
}
