package services_test

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/stretchr/testify/mock"
)

// --- Mock LedgerRepository ---
type MockLedgerRepository struct {
	mock.Mock
}

var _ portsrepo.LedgerRepositoryFacade = (*MockLedgerRepository)(nil)

func (m *MockLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerRepository) BalanceByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) EntriesByAccount(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, accountID, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ReaderBalances(ctx context.Context) ([]domain.AccountBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountBalance), args.Error(1)
}

func (m *MockLedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendSplitTransfer(ctx context.Context, debit domain.LedgerEntry, credits []domain.LedgerEntry) (decimal.Decimal, error) {
	args := m.Called(ctx, debit, credits)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) AppendCredit(ctx context.Context, entry domain.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// --- Mock AvailabilityRepository ---
type MockAvailabilityRepository struct {
	mock.Mock
}

var _ portsrepo.AvailabilityRepositoryFacade = (*MockAvailabilityRepository)(nil)

func (m *MockAvailabilityRepository) ReplaceOpenSlots(ctx context.Context, readerID string, slots []domain.AvailabilitySlot) error {
	args := m.Called(ctx, readerID, slots)
	return args.Error(0)
}

func (m *MockAvailabilityRepository) ListSlots(ctx context.Context, readerID string, from, to time.Time) ([]domain.AvailabilitySlot, error) {
	args := m.Called(ctx, readerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityRepository) FindOpenSlotAt(ctx context.Context, readerID string, at time.Time) (*domain.AvailabilitySlot, error) {
	args := m.Called(ctx, readerID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityRepository) UpdateSlotStatus(ctx context.Context, slotID string, from, to domain.SlotStatus) error {
	args := m.Called(ctx, slotID, from, to)
	return args.Error(0)
}

// --- Mock SessionArchiveRepository ---
type MockSessionArchiveRepository struct {
	mock.Mock
}

var _ portsrepo.SessionArchiveRepositoryFacade = (*MockSessionArchiveRepository)(nil)

func (m *MockSessionArchiveRepository) ArchiveSession(ctx context.Context, session domain.ReadingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionArchiveRepository) FindArchivedByID(ctx context.Context, sessionID string) (*domain.ReadingSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadingSession), args.Error(1)
}

// --- Mock PayoutRepository ---
type MockPayoutRepository struct {
	mock.Mock
}

var _ portsrepo.PayoutRepositoryFacade = (*MockPayoutRepository)(nil)

func (m *MockPayoutRepository) SavePayout(ctx context.Context, payout domain.PayoutRequest) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

func (m *MockPayoutRepository) FindOverlapping(ctx context.Context, readerID string, periodStart, periodEnd time.Time) (*domain.PayoutRequest, error) {
	args := m.Called(ctx, readerID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayoutRequest), args.Error(1)
}

func (m *MockPayoutRepository) MarkSent(ctx context.Context, payoutID string, transferRef string, debit domain.LedgerEntry) error {
	args := m.Called(ctx, payoutID, transferRef, debit)
	return args.Error(0)
}

func (m *MockPayoutRepository) MarkFailed(ctx context.Context, payoutID string, reason string) error {
	args := m.Called(ctx, payoutID, reason)
	return args.Error(0)
}

func (m *MockPayoutRepository) ListByReader(ctx context.Context, readerID string, limit int) ([]domain.PayoutRequest, error) {
	args := m.Called(ctx, readerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PayoutRequest), args.Error(1)
}

// --- Mock Disburser ---
type MockDisburser struct {
	mock.Mock
}

var _ portssvc.Disburser = (*MockDisburser)(nil)

func (m *MockDisburser) Disburse(ctx context.Context, payout domain.PayoutRequest) (string, error) {
	args := m.Called(ctx, payout)
	return args.String(0), args.Error(1)
}

// --- Mock SessionNotifier ---
type MockSessionNotifier struct {
	mock.Mock
}

var _ portssvc.SessionNotifier = (*MockSessionNotifier)(nil)

func (m *MockSessionNotifier) PublishControl(sessionID string, event dto.ControlEvent) {
	m.Called(sessionID, event)
}

func (m *MockSessionNotifier) CloseSession(sessionID string) {
	m.Called(sessionID)
}
