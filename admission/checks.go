package admission

import (
	"context"

	"github.com/shopspring/decimal"
)

var quantityCeiling = decimal.NewFromInt(MaxQuantity + 1)

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidateQuantity accepts whole numbers strictly between 0 and 100 and
// returns them as an int. It never touches a store.
func ValidateQuantity(q decimal.Decimal) (int, error) {
	if !q.IsInteger() || q.Sign() <= 0 || q.GreaterThanOrEqual(quantityCeiling) {
		return 0, &InvalidQuantityError{Quantity: q}
	}
	return int(q.IntPart()), nil
}

// =============================================================================
// DAILY UNIQUENESS CHECKER
// =============================================================================

// CheckDaily fails with *DuplicateForDayError when the pair already has a
// request on today. today must come from the caller's single clock reading.
func CheckDaily(ctx context.Context, store Store, chwID, commodityID int64, today Day) error {
	exists, err := store.ExistsRequestForDay(ctx, chwID, commodityID, today)
	if err != nil {
		return storeError("exists request for day", err)
	}
	if exists {
		return &DuplicateForDayError{CHWID: chwID, CommodityID: commodityID, Day: today}
	}
	return nil
}

// =============================================================================
// MONTHLY QUOTA ACCUMULATOR
// =============================================================================

// CheckMonthly returns the month-to-date total for the pair. Requests of
// every status count, since the check runs before any status can change.
// It fails with *MonthlyLimitError when total + quantity > MonthlyLimit.
func CheckMonthly(ctx context.Context, store Store, chwID, commodityID int64, monthStart Day, quantity int) (int, error) {
	total, err := store.SumQuantityForMonth(ctx, chwID, commodityID, monthStart)
	if err != nil {
		return 0, storeError("sum quantity for month", err)
	}
	if total+quantity > MonthlyLimit {
		return total, &MonthlyLimitError{
			CHWID:       chwID,
			CommodityID: commodityID,
			Total:       total,
			Requested:   quantity,
			Limit:       MonthlyLimit,
		}
	}
	return total, nil
}
