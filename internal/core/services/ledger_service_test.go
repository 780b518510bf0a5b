package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/core/services"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testPlatformAccount = "platform"

type LedgerServiceTestSuite struct {
	suite.Suite
	mockLedgerRepo *MockLedgerRepository
	service        portssvc.LedgerSvcFacade
	session        domain.ReadingSession
}

func (suite *LedgerServiceTestSuite) SetupTest() {
	suite.mockLedgerRepo = new(MockLedgerRepository)
	suite.service = services.NewLedgerService(
		suite.mockLedgerRepo,
		decimal.RequireFromString("0.70"),
		testPlatformAccount,
	)

	now := time.Now().UTC()
	suite.session = domain.ReadingSession{
		SessionID:     uuid.NewString(),
		ClientID:      uuid.NewString(),
		ReaderID:      uuid.NewString(),
		Modality:      domain.ModalityChat,
		RatePerMinute: decimal.RequireFromString("2.00"),
		CurrencyCode:  domain.DefaultCurrency,
		State:         domain.StateActive,
		StartedAt:     &now,
	}
}

func (suite *LedgerServiceTestSuite) TestBillTick_SplitsSeventyThirty() {
	ctx := context.Background()

	var capturedDebit domain.LedgerEntry
	var capturedCredits []domain.LedgerEntry
	suite.mockLedgerRepo.On("AppendSplitTransfer", ctx,
		mock.AnythingOfType("domain.LedgerEntry"), mock.AnythingOfType("[]domain.LedgerEntry")).
		Run(func(args mock.Arguments) {
			capturedDebit = args.Get(1).(domain.LedgerEntry)
			capturedCredits = args.Get(2).([]domain.LedgerEntry)
		}).
		Return(decimal.RequireFromString("8.00"), nil).Once()

	balance, err := suite.service.BillTick(ctx, &suite.session, 3)

	suite.Require().NoError(err)
	suite.True(balance.Equal(decimal.RequireFromString("8.00")))

	suite.Equal(suite.session.ClientID, capturedDebit.AccountID)
	suite.Equal(domain.EntryDebit, capturedDebit.Kind)
	suite.True(capturedDebit.Amount.Equal(decimal.RequireFromString("2.00")))
	suite.Require().NotNil(capturedDebit.MinuteIndex)
	suite.Equal(int64(3), *capturedDebit.MinuteIndex)

	suite.Require().Len(capturedCredits, 2)
	suite.Equal(suite.session.ReaderID, capturedCredits[0].AccountID)
	suite.True(capturedCredits[0].Amount.Equal(decimal.RequireFromString("1.40")))
	suite.Equal(testPlatformAccount, capturedCredits[1].AccountID)
	suite.True(capturedCredits[1].Amount.Equal(decimal.RequireFromString("0.60")))

	// The entries always sum to zero.
	sum := capturedDebit.Signed().Add(capturedCredits[0].Signed()).Add(capturedCredits[1].Signed())
	suite.True(sum.IsZero(), "entries sum to %s", sum)

	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *LedgerServiceTestSuite) TestBillTick_OddRateStillZeroSum() {
	ctx := context.Background()
	suite.session.RatePerMinute = decimal.RequireFromString("3.33")

	var capturedDebit domain.LedgerEntry
	var capturedCredits []domain.LedgerEntry
	suite.mockLedgerRepo.On("AppendSplitTransfer", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedDebit = args.Get(1).(domain.LedgerEntry)
			capturedCredits = args.Get(2).([]domain.LedgerEntry)
		}).
		Return(decimal.RequireFromString("1.00"), nil).Once()

	_, err := suite.service.BillTick(ctx, &suite.session, 1)

	suite.Require().NoError(err)
	total := capturedCredits[0].Amount.Add(capturedCredits[1].Amount)
	suite.True(total.Equal(capturedDebit.Amount), "credits %s != debit %s", total, capturedDebit.Amount)
}

func (suite *LedgerServiceTestSuite) TestBillTick_InsufficientFunds() {
	ctx := context.Background()
	suite.mockLedgerRepo.On("AppendSplitTransfer", ctx, mock.Anything, mock.Anything).
		Return(decimal.Zero, apperrors.ErrInsufficientFunds).Once()

	_, err := suite.service.BillTick(ctx, &suite.session, 1)

	suite.Require().ErrorIs(err, apperrors.ErrInsufficientFunds)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *LedgerServiceTestSuite) TestGift_RequiresActiveSession() {
	ctx := context.Background()
	suite.session.State = domain.StatePending

	err := suite.service.Gift(ctx, &suite.session, decimal.RequireFromString("5.00"), "rose")

	suite.Require().ErrorIs(err, apperrors.ErrConflict)
	suite.mockLedgerRepo.AssertNotCalled(suite.T(), "AppendSplitTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *LedgerServiceTestSuite) TestGift_RejectsNonPositiveAmount() {
	ctx := context.Background()

	err := suite.service.Gift(ctx, &suite.session, decimal.Zero, "")

	suite.Require().ErrorIs(err, apperrors.ErrValidation)
}

func (suite *LedgerServiceTestSuite) TestGift_SplitsLikeATick() {
	ctx := context.Background()

	var capturedDebit domain.LedgerEntry
	var capturedCredits []domain.LedgerEntry
	suite.mockLedgerRepo.On("AppendSplitTransfer", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedDebit = args.Get(1).(domain.LedgerEntry)
			capturedCredits = args.Get(2).([]domain.LedgerEntry)
		}).
		Return(decimal.RequireFromString("4.00"), nil).Once()

	err := suite.service.Gift(ctx, &suite.session, decimal.RequireFromString("10.00"), "crystal ball")

	suite.Require().NoError(err)
	suite.Nil(capturedDebit.MinuteIndex, "gifts carry no minute index")
	suite.True(capturedCredits[0].Amount.Equal(decimal.RequireFromString("7.00")))
	suite.True(capturedCredits[1].Amount.Equal(decimal.RequireFromString("3.00")))
}

func (suite *LedgerServiceTestSuite) TestDeposit_RecordsCredit() {
	ctx := context.Background()
	accountID := uuid.NewString()

	suite.mockLedgerRepo.On("FindAccountByID", ctx, accountID).
		Return(&domain.Account{AccountID: accountID, Kind: domain.AccountClient}, nil).Once()

	var captured domain.LedgerEntry
	suite.mockLedgerRepo.On("AppendCredit", ctx, mock.AnythingOfType("domain.LedgerEntry")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(domain.LedgerEntry)
		}).
		Return(nil).Once()

	err := suite.service.Deposit(ctx, accountID, decimal.RequireFromString("25.00"), "stripe top-up")

	suite.Require().NoError(err)
	suite.Equal(domain.EntryCredit, captured.Kind)
	suite.True(captured.Amount.Equal(decimal.RequireFromString("25.00")))
	suite.Equal("stripe top-up", captured.Memo)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *LedgerServiceTestSuite) TestDeposit_UnknownAccount() {
	ctx := context.Background()
	accountID := uuid.NewString()

	suite.mockLedgerRepo.On("FindAccountByID", ctx, accountID).
		Return(nil, apperrors.ErrNotFound).Once()

	err := suite.service.Deposit(ctx, accountID, decimal.RequireFromString("25.00"), "")

	suite.Require().ErrorIs(err, apperrors.ErrNotFound)
	suite.mockLedgerRepo.AssertNotCalled(suite.T(), "AppendCredit", mock.Anything, mock.Anything)
}

func (suite *LedgerServiceTestSuite) TestEntries_RejectsInvertedRange() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := suite.service.Entries(ctx, uuid.NewString(), now, now.Add(-time.Hour), 10)

	suite.Require().ErrorIs(err, apperrors.ErrValidation)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
