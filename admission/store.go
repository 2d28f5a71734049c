/*
store.go - Persistence contract consumed by the admission engine

PURPOSE:
  The engine needs exactly two reads and one write. Anything that can
  answer them (SQLite, an in-memory fake) can back admission.

KEY INTERFACES:
  Store:   The two reads and the insert
  TxStore: Runs a function against a Store inside one serialized unit

SERIALIZATION:
  Check-then-insert is a classic race under concurrent writers: two
  submissions can both read a pre-insert total and both pass. TxStore
  closes it. Implementations must guarantee that no other WithTx for the
  same store interleaves with fn, and that fn's writes are discarded when
  it returns an error.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production
  - admission/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Calls WithTx around Evaluate + InsertRequest
*/
package admission

import "context"

// Store answers the admission queries and records admitted requests.
type Store interface {
	// ExistsRequestForDay reports whether any request, of any status, exists
	// for the pair on the given calendar day.
	ExistsRequestForDay(ctx context.Context, chwID, commodityID int64, day Day) (bool, error)

	// SumQuantityForMonth sums quantities of all requests for the pair whose
	// day is on or after monthStart. No matches sum to 0.
	SumQuantityForMonth(ctx context.Context, chwID, commodityID int64, monthStart Day) (int, error)

	// InsertRequest persists a request and returns it with its ID.
	// Returns ErrDuplicateForDay if the store's own uniqueness rule fires,
	// and ErrUnknownReference if the CHW or commodity does not exist.
	InsertRequest(ctx context.Context, req NewRequest) (Request, error)
}

// TxStore wraps Store with serialized transactions.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
