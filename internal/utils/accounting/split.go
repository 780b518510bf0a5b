package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// SplitAmount divides a gross billed amount between reader and platform.
// The reader share is the gross times readerShare rounded to cents; the
// platform share is the remainder, so the two credits always sum exactly to
// the gross debit even for amounts that don't split evenly.
func SplitAmount(gross, readerShare decimal.Decimal) (reader, platform decimal.Decimal, err error) {
	if gross.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("gross amount must not be negative, got %s", gross)
	}
	if readerShare.IsNegative() || readerShare.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("reader share must be within [0, 1], got %s", readerShare)
	}

	reader = gross.Mul(readerShare).Round(2)
	platform = gross.Sub(reader)
	return reader, platform, nil
}

// ValidateTickBalance checks the zero-sum invariant for one billing tick: the
// debit amount must equal the sum of its covering credits.
func ValidateTickBalance(debit domain.LedgerEntry, credits []domain.LedgerEntry) error {
	if debit.Kind == domain.EntryCredit {
		return fmt.Errorf("tick debit entry %s has credit kind", debit.EntryID)
	}
	if debit.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tick debit amount must be positive, got %s", debit.Amount)
	}

	sum := decimal.Zero
	for _, c := range credits {
		if c.Kind != domain.EntryCredit {
			return fmt.Errorf("tick credit entry %s has kind %s", c.EntryID, c.Kind)
		}
		if c.Amount.IsNegative() {
			return fmt.Errorf("tick credit amount must not be negative for entry %s", c.EntryID)
		}
		sum = sum.Add(c.Amount)
	}

	if !sum.Equal(debit.Amount) {
		return fmt.Errorf("tick entries do not balance: debit %s, credits sum %s", debit.Amount, sum)
	}
	return nil
}
