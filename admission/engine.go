/*
engine.go - Admission decision orchestration

PURPOSE:
  Decides whether a submitted commodity request may be persisted, and
  persists it when it may.

DECISION FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Input ──▶ Validator ──▶ Daily check ──▶ Monthly check ──▶ Insert │
  │               │              │               │           Pending │
  │               ▼              ▼               ▼                   │
  │        InvalidQuantity  DuplicateForDay  MonthlyLimitExceeded    │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

  The order is fixed. The local check runs first so malformed input never
  reaches the store, then the narrow daily query, then the broad monthly
  sum. The first failure wins.

CLOCK:
  The engine reads its Clock once per attempt. The same instant becomes
  the request timestamp, "today" and "start of month".

SERIALIZATION:
  Admit runs the store checks and the insert inside Store.WithTx, so two
  concurrent submissions for the same pair cannot both pass on a stale
  total.

FAILURES:
  Denials are ordinary outcomes. Store failures come back as *StoreError
  and are not retried here; the caller owns retry policy.

EXAMPLE:
  engine := admission.NewEngine(store, logger)
  req, err := engine.Admit(ctx, admission.Input{
      CHWID: 1, CommodityID: 5, Quantity: decimal.NewFromInt(49),
  })

SEE ALSO:
  - checks.go: The three individual checks
  - store.go: Store contract
*/
package admission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultQueryTimeout bounds one admission attempt's store work.
const DefaultQueryTimeout = 5 * time.Second

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the server's local wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Verdict describes a passed admission.
type Verdict struct {
	CHWID       int64
	CommodityID int64
	Quantity    int
	Day         Day
	At          time.Time

	// MonthToDate is the pair's total before this request.
	MonthToDate int
}

// MonthTotalAfter is the month-to-date total once this request is stored.
func (v Verdict) MonthTotalAfter() int { return v.MonthToDate + v.Quantity }

// Remaining is how much of the monthly limit is left after this request.
func (v Verdict) Remaining() int { return MonthlyLimit - v.MonthTotalAfter() }

// =============================================================================
// EVALUATE - Decision without insert
// =============================================================================

// Evaluate runs the three checks in order against store, using now as the
// single source of "today". It never writes.
func Evaluate(ctx context.Context, store Store, in Input, now time.Time) (Verdict, error) {
	quantity, err := ValidateQuantity(in.Quantity)
	if err != nil {
		return Verdict{}, err
	}
	return evaluateStored(ctx, store, in.CHWID, in.CommodityID, quantity, now)
}

func evaluateStored(ctx context.Context, store Store, chwID, commodityID int64, quantity int, now time.Time) (Verdict, error) {
	today := DayOf(now)

	if err := CheckDaily(ctx, store, chwID, commodityID, today); err != nil {
		return Verdict{}, err
	}

	total, err := CheckMonthly(ctx, store, chwID, commodityID, today.MonthStart(), quantity)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		CHWID:       chwID,
		CommodityID: commodityID,
		Quantity:    quantity,
		Day:         today,
		At:          now,
		MonthToDate: total,
	}, nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine admits requests against a transactional store.
type Engine struct {
	Store        TxStore
	Clock        Clock
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

// NewEngine creates an engine with the system clock and default timeout.
func NewEngine(store TxStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Store:        store,
		Clock:        SystemClock,
		QueryTimeout: DefaultQueryTimeout,
		Logger:       logger,
	}
}

// Check evaluates in without inserting anything.
func (e *Engine) Check(ctx context.Context, in Input) (Verdict, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	v, err := Evaluate(ctx, e.Store, in, e.now())
	return v, e.classify(err)
}

// Admit evaluates in and, if every check passes, inserts it as Pending at
// the evaluation instant. Nothing is written on any failure.
func (e *Engine) Admit(ctx context.Context, in Input) (Request, error) {
	quantity, err := ValidateQuantity(in.Quantity)
	if err != nil {
		e.logDenial(in, err)
		return Request{}, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	now := e.now()
	var created Request
	err = e.Store.WithTx(ctx, func(s Store) error {
		v, err := evaluateStored(ctx, s, in.CHWID, in.CommodityID, quantity, now)
		if err != nil {
			return err
		}

		created, err = s.InsertRequest(ctx, NewRequest{
			CHWID:       v.CHWID,
			CommodityID: v.CommodityID,
			Quantity:    v.Quantity,
			RequestDate: now,
			Status:      StatusPending,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateForDay) {
				return &DuplicateForDayError{CHWID: v.CHWID, CommodityID: v.CommodityID, Day: v.Day}
			}
			if errors.Is(err, ErrUnknownReference) {
				return err
			}
			return storeError("insert request", err)
		}
		return nil
	})

	if err = e.classify(err); err != nil {
		if IsDenial(err) {
			e.logDenial(in, err)
		}
		return Request{}, err
	}

	e.log().Debug("request admitted",
		zap.Int64("request_id", created.ID),
		zap.Int64("chw_id", created.CHWID),
		zap.Int64("commodity_id", created.CommodityID),
		zap.Int("quantity", created.Quantity),
	)
	return created, nil
}

// classify makes sure every failure that is neither a denial nor a bad
// reference surfaces as a StoreError.
func (e *Engine) classify(err error) error {
	if err == nil || IsDenial(err) || IsStoreUnavailable(err) || errors.Is(err, ErrUnknownReference) {
		return err
	}
	return storeError("transaction", err)
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return SystemClock.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.QueryTimeout)
}

func (e *Engine) logDenial(in Input, err error) {
	e.log().Info("request denied",
		zap.Int64("chw_id", in.CHWID),
		zap.Int64("commodity_id", in.CommodityID),
		zap.String("quantity", in.Quantity.String()),
		zap.String("reason", DenialCode(err)),
	)
}
