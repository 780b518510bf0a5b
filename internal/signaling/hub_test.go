package signaling_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/signaling"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock SessionRegistry ---
type MockSessionRegistry struct {
	mock.Mock
}

var _ portssvc.SessionRegistrySvcFacade = (*MockSessionRegistry)(nil)

func (m *MockSessionRegistry) Create(ctx context.Context, req dto.CreateSessionRequest) (*domain.ReadingSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadingSession), args.Error(1)
}

func (m *MockSessionRegistry) MarkReady(ctx context.Context, sessionID, participantID string) (*domain.ReadingSession, error) {
	args := m.Called(ctx, sessionID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadingSession), args.Error(1)
}

func (m *MockSessionRegistry) Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error {
	args := m.Called(ctx, sessionID, reason)
	return args.Error(0)
}

func (m *MockSessionRegistry) Get(ctx context.Context, sessionID string) (*domain.ReadingSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadingSession), args.Error(1)
}

func (m *MockSessionRegistry) Gift(ctx context.Context, sessionID string, amount decimal.Decimal, memo string) error {
	args := m.Called(ctx, sessionID, amount, memo)
	return args.Error(0)
}

func (m *MockSessionRegistry) Participants(sessionID string) (string, string, error) {
	args := m.Called(sessionID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockSessionRegistry) HandlePresence(sessionID, participantID string, online bool) {
	m.Called(sessionID, participantID, online)
}

func (m *MockSessionRegistry) Shutdown(ctx context.Context) {
	m.Called(ctx)
}

type HubTestSuite struct {
	suite.Suite
	mockRegistry *MockSessionRegistry
	hub          *signaling.Hub

	sessionID string
	clientID  string
	readerID  string
}

func (suite *HubTestSuite) SetupTest() {
	suite.mockRegistry = new(MockSessionRegistry)
	suite.hub = signaling.NewHub(suite.mockRegistry, nil)

	suite.sessionID = uuid.NewString()
	suite.clientID = uuid.NewString()
	suite.readerID = uuid.NewString()

	suite.mockRegistry.On("Participants", suite.sessionID).
		Return(suite.clientID, suite.readerID, nil)
	suite.mockRegistry.On("HandlePresence", suite.sessionID, mock.AnythingOfType("string"), mock.AnythingOfType("bool")).
		Return()
}

func (suite *HubTestSuite) joinBoth() (*signaling.Client, *signaling.Client) {
	client, err := suite.hub.Join(suite.sessionID, suite.clientID)
	suite.Require().NoError(err)
	reader, err := suite.hub.Join(suite.sessionID, suite.readerID)
	suite.Require().NoError(err)
	return client, reader
}

func (suite *HubTestSuite) TestJoin_ReportsPresence() {
	client, err := suite.hub.Join(suite.sessionID, suite.clientID)

	suite.Require().NoError(err)
	suite.Equal(suite.sessionID, client.SessionID)
	suite.Equal(suite.clientID, client.ParticipantID)
	suite.mockRegistry.AssertCalled(suite.T(), "HandlePresence", suite.sessionID, suite.clientID, true)
}

func (suite *HubTestSuite) TestJoin_RejectsStranger() {
	_, err := suite.hub.Join(suite.sessionID, uuid.NewString())

	suite.Require().ErrorIs(err, apperrors.ErrUnauthorized)
}

func (suite *HubTestSuite) TestJoin_UnknownSession() {
	unknown := uuid.NewString()
	suite.mockRegistry.On("Participants", unknown).Return("", "", apperrors.ErrNotFound)

	_, err := suite.hub.Join(unknown, suite.clientID)

	suite.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *HubTestSuite) TestJoin_ReconnectReplacesOldAttachment() {
	first, _ := suite.joinBoth()

	second, err := suite.hub.Join(suite.sessionID, suite.clientID)
	suite.Require().NoError(err)

	_, open := <-first.Outbound()
	suite.False(open, "the replaced attachment's queue closes")

	// The stale client leaving must not mark the participant offline.
	suite.hub.Leave(first)
	suite.mockRegistry.AssertNotCalled(suite.T(), "HandlePresence", suite.sessionID, suite.clientID, false)

	suite.hub.Leave(second)
	suite.mockRegistry.AssertCalled(suite.T(), "HandlePresence", suite.sessionID, suite.clientID, false)
}

func (suite *HubTestSuite) TestReceive_ChatRelaysToPeer() {
	client, reader := suite.joinBoth()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
		Type:    dto.EventChat,
		Content: "what do the cards say",
	})
	suite.Require().NoError(err)

	got := <-reader.Outbound()
	suite.Equal(dto.EventChat, got.Type)
	suite.Equal(suite.clientID, got.From, "the hub stamps the sender")
	suite.Equal("what do the cards say", got.Content)
	suite.False(got.SentAt.IsZero())

	// The sender never hears its own message.
	select {
	case env := <-client.Outbound():
		suite.Failf("unexpected echo", "got %+v", env)
	default:
	}
}

func (suite *HubTestSuite) TestReceive_NegotiationRelaysOpaquePayload() {
	client, reader := suite.joinBoth()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
		Type:    dto.EventNegotiation,
		Payload: []byte(`{"sdp":"offer"}`),
	})
	suite.Require().NoError(err)

	got := <-reader.Outbound()
	suite.Equal(dto.EventNegotiation, got.Type)
	suite.JSONEq(`{"sdp":"offer"}`, string(got.Payload))
}

func (suite *HubTestSuite) TestReceive_ReadySignalsRegistryAndPeer() {
	client, reader := suite.joinBoth()
	suite.mockRegistry.On("MarkReady", mock.Anything, suite.sessionID, suite.clientID).
		Return(&domain.ReadingSession{SessionID: suite.sessionID, State: domain.StatePending}, nil).Once()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
		Type:    dto.EventControl,
		Subtype: dto.ControlReady,
	})
	suite.Require().NoError(err)

	got := <-reader.Outbound()
	suite.Equal(dto.ControlReady, got.Subtype)
	suite.mockRegistry.AssertExpectations(suite.T())
}

func (suite *HubTestSuite) TestReceive_EndTerminatesSession() {
	client, _ := suite.joinBoth()
	suite.mockRegistry.On("Terminate", mock.Anything, suite.sessionID, domain.ReasonCompleted).
		Return(nil).Once()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
		Type:    dto.EventControl,
		Subtype: dto.ControlEnd,
	})

	suite.Require().NoError(err)
	suite.mockRegistry.AssertExpectations(suite.T())
}

func (suite *HubTestSuite) TestReceive_HeartbeatRefreshesPresence() {
	client, _ := suite.joinBoth()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
		Type:    dto.EventControl,
		Subtype: dto.ControlHeartbeat,
	})

	suite.Require().NoError(err)
	suite.mockRegistry.AssertCalled(suite.T(), "HandlePresence", suite.sessionID, suite.clientID, true)
}

func (suite *HubTestSuite) TestReceive_RejectsUnknownType() {
	client, _ := suite.joinBoth()

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{Type: "telepathy"})

	suite.Require().ErrorIs(err, apperrors.ErrValidation)
}

func (suite *HubTestSuite) TestPublishControl_ReachesAllParticipants() {
	client, reader := suite.joinBoth()

	suite.hub.PublishControl(suite.sessionID, dto.ControlEvent{
		Subtype: dto.ControlLowBalanceWarning,
		Data:    map[string]any{"balance": "3.50"},
	})

	for _, c := range []*signaling.Client{client, reader} {
		got := <-c.Outbound()
		suite.Equal(dto.EventControl, got.Type)
		suite.Equal(dto.ControlLowBalanceWarning, got.Subtype)
		suite.Equal("server", got.From)
		suite.Equal("3.50", got.Data["balance"])
	}
}

func (suite *HubTestSuite) TestPublishControl_UnknownSessionIsNoop() {
	suite.hub.PublishControl(uuid.NewString(), dto.ControlEvent{Subtype: dto.ControlSessionEnded})
}

func (suite *HubTestSuite) TestCloseSession_DrainsAndRejects() {
	client, reader := suite.joinBoth()

	suite.hub.CloseSession(suite.sessionID)

	_, open := <-client.Outbound()
	suite.False(open)
	_, open = <-reader.Outbound()
	suite.False(open)

	err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{Type: dto.EventChat, Content: "hello?"})
	suite.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *HubTestSuite) TestJoin_RacingTerminationIsRejected() {
	sessionID := uuid.NewString()
	clientID := uuid.NewString()

	// The participant check passes just before the session terminates; every
	// later check sees the session gone. CloseSession runs before the join
	// inserts its channel, so the teardown cannot see it.
	suite.mockRegistry.On("Participants", sessionID).
		Return(clientID, uuid.NewString(), nil).Once()
	suite.mockRegistry.On("Participants", sessionID).
		Return("", "", apperrors.ErrNotFound)

	suite.hub.CloseSession(sessionID)

	_, err := suite.hub.Join(sessionID, clientID)
	suite.Require().ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRegistry.AssertNotCalled(suite.T(), "HandlePresence", sessionID, clientID, true)

	// The aborted join must not leave a live channel behind.
	_, err = suite.hub.Join(sessionID, clientID)
	suite.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *HubTestSuite) TestSlowConsumerDropsInsteadOfBlocking() {
	client, reader := suite.joinBoth()

	// Overfill the reader's queue; sends past capacity must not block.
	for i := 0; i < 80; i++ {
		err := suite.hub.Receive(context.Background(), client, dto.EventEnvelope{
			Type:    dto.EventChat,
			Content: "spam",
		})
		suite.Require().NoError(err)
	}

	delivered := 0
	for {
		select {
		case <-reader.Outbound():
			delivered++
			continue
		default:
		}
		break
	}
	suite.Equal(64, delivered, "the queue caps at its buffer size")
}

func TestHubTestSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}
