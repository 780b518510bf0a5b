package accounting_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/utils/accounting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAmount_SeventyThirty(t *testing.T) {
	reader, platform, err := accounting.SplitAmount(
		decimal.RequireFromString("2.00"),
		decimal.RequireFromString("0.70"),
	)
	require.NoError(t, err)
	assert.True(t, reader.Equal(decimal.RequireFromString("1.40")), "reader share was %s", reader)
	assert.True(t, platform.Equal(decimal.RequireFromString("0.60")), "platform share was %s", platform)
}

func TestSplitAmount_OddCentsStillSumToGross(t *testing.T) {
	gross := decimal.RequireFromString("3.33")
	reader, platform, err := accounting.SplitAmount(gross, decimal.RequireFromString("0.70"))
	require.NoError(t, err)
	assert.True(t, reader.Add(platform).Equal(gross), "shares %s + %s != %s", reader, platform, gross)
}

func TestSplitAmount_RejectsNegativeGross(t *testing.T) {
	_, _, err := accounting.SplitAmount(decimal.RequireFromString("-1"), decimal.RequireFromString("0.70"))
	assert.Error(t, err)
}

func TestSplitAmount_RejectsShareAboveOne(t *testing.T) {
	_, _, err := accounting.SplitAmount(decimal.RequireFromString("1"), decimal.RequireFromString("1.10"))
	assert.Error(t, err)
}

func TestValidateTickBalance(t *testing.T) {
	debit := domain.LedgerEntry{EntryID: "d1", Kind: domain.EntryDebit, Amount: decimal.RequireFromString("2.00")}
	credits := []domain.LedgerEntry{
		{EntryID: "c1", Kind: domain.EntryCredit, Amount: decimal.RequireFromString("1.40")},
		{EntryID: "c2", Kind: domain.EntryCredit, Amount: decimal.RequireFromString("0.60")},
	}
	assert.NoError(t, accounting.ValidateTickBalance(debit, credits))

	credits[1].Amount = decimal.RequireFromString("0.59")
	assert.Error(t, accounting.ValidateTickBalance(debit, credits))
}
