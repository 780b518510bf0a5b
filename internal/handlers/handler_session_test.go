package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/handlers"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock SessionRegistry ---
type MockSessionRegistry struct {
	mock.Mock
}

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

var _ portssvc.SessionRegistrySvcFacade = (*MockSessionRegistry)(nil)

// --- Test Suite ---
type SessionHandlerTestSuite struct {
	suite.Suite
	router       *gin.Engine
	mockRegistry *MockSessionRegistry
}

func (suite *SessionHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	handlers.RegisterCustomValidators()
	suite.router = gin.New()

	suite.mockRegistry = new(MockSessionRegistry)

	noLimit := func(c *gin.Context) { c.Next() }
	v1 := suite.router.Group("/api/v1")
	handlers.RegisterSessionRoutes(v1, suite.mockRegistry, noLimit)
}

func (suite *SessionHandlerTestSuite) postJSON(url string, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	suite.Require().NoError(err)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *SessionHandlerTestSuite) TestCreateSession_Success() {
	clientID := uuid.NewString()
	readerID := uuid.NewString()
	expected := &domain.ReadingSession{
		SessionID:     uuid.NewString(),
		ClientID:      clientID,
		ReaderID:      readerID,
		Modality:      domain.ModalityVideo,
		RatePerMinute: decimal.RequireFromString("2.00"),
		CurrencyCode:  domain.DefaultCurrency,
		State:         domain.StatePending,
	}

	suite.mockRegistry.On("Create", mock.Anything, mock.MatchedBy(func(req dto.CreateSessionRequest) bool {
		return req.ClientID == clientID && req.ReaderID == readerID && req.Modality == domain.ModalityVideo
	})).Return(expected, nil).Once()

	w := suite.postJSON("/api/v1/sessions", gin.H{
		"clientID":      clientID,
		"readerID":      readerID,
		"modality":      "video",
		"ratePerMinute": "2.00",
	})

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.SessionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(expected.SessionID, resp.SessionID)
	suite.Equal("pending", resp.State)
	suite.mockRegistry.AssertExpectations(suite.T())
}

func (suite *SessionHandlerTestSuite) TestCreateSession_RejectsBadModality() {
	w := suite.postJSON("/api/v1/sessions", gin.H{
		"clientID":      uuid.NewString(),
		"readerID":      uuid.NewString(),
		"modality":      "seance",
		"ratePerMinute": "2.00",
	})

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockRegistry.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *SessionHandlerTestSuite) TestCreateSession_ReaderUnavailable() {
	suite.mockRegistry.On("Create", mock.Anything, mock.Anything).
		Return(nil, apperrors.ErrReaderUnavailable).Once()

	w := suite.postJSON("/api/v1/sessions", gin.H{
		"clientID":      uuid.NewString(),
		"readerID":      uuid.NewString(),
		"modality":      "chat",
		"ratePerMinute": "2.00",
	})

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *SessionHandlerTestSuite) TestCreateSession_InsufficientFunds() {
	suite.mockRegistry.On("Create", mock.Anything, mock.Anything).
		Return(nil, apperrors.ErrInsufficientFunds).Once()

	w := suite.postJSON("/api/v1/sessions", gin.H{
		"clientID":      uuid.NewString(),
		"readerID":      uuid.NewString(),
		"modality":      "chat",
		"ratePerMinute": "2.00",
	})

	suite.Equal(http.StatusPaymentRequired, w.Code)
}

func (suite *SessionHandlerTestSuite) TestMarkReady_Success() {
	sessionID := uuid.NewString()
	participantID := uuid.NewString()
	now := time.Now().UTC()
	active := &domain.ReadingSession{
		SessionID: sessionID,
		State:     domain.StateActive,
		StartedAt: &now,
	}

	suite.mockRegistry.On("MarkReady", mock.Anything, sessionID, participantID).
		Return(active, nil).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/ready", sessionID), gin.H{
		"participantID": participantID,
	})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.SessionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("active", resp.State)
	suite.NotNil(resp.StartedAt)
}

func (suite *SessionHandlerTestSuite) TestMarkReady_NotAParticipant() {
	sessionID := uuid.NewString()
	suite.mockRegistry.On("MarkReady", mock.Anything, sessionID, mock.AnythingOfType("string")).
		Return(nil, apperrors.ErrUnauthorized).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/ready", sessionID), gin.H{
		"participantID": uuid.NewString(),
	})

	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *SessionHandlerTestSuite) TestEndSession_Success() {
	sessionID := uuid.NewString()
	clientID := uuid.NewString()
	readerID := uuid.NewString()

	suite.mockRegistry.On("Participants", sessionID).Return(clientID, readerID, nil).Once()
	suite.mockRegistry.On("Terminate", mock.Anything, sessionID, domain.ReasonCompleted).Return(nil).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/end", sessionID), gin.H{
		"participantID": readerID,
	})

	suite.Equal(http.StatusOK, w.Code)
	suite.mockRegistry.AssertExpectations(suite.T())
}

func (suite *SessionHandlerTestSuite) TestEndSession_StrangerForbidden() {
	sessionID := uuid.NewString()
	suite.mockRegistry.On("Participants", sessionID).
		Return(uuid.NewString(), uuid.NewString(), nil).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/end", sessionID), gin.H{
		"participantID": uuid.NewString(),
	})

	suite.Equal(http.StatusForbidden, w.Code)
	suite.mockRegistry.AssertNotCalled(suite.T(), "Terminate", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SessionHandlerTestSuite) TestGetSession_NotFound() {
	sessionID := uuid.NewString()
	suite.mockRegistry.On("Get", mock.Anything, sessionID).
		Return(nil, apperrors.ErrNotFound).Once()

	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s", sessionID), nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *SessionHandlerTestSuite) TestSendGift_Success() {
	sessionID := uuid.NewString()

	suite.mockRegistry.On("Gift", mock.Anything, sessionID,
		mock.MatchedBy(func(amount decimal.Decimal) bool {
			return amount.Equal(decimal.RequireFromString("5.00"))
		}), "rose").Return(nil).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/gift", sessionID), gin.H{
		"amount": "5.00",
		"memo":   "rose",
	})

	suite.Equal(http.StatusOK, w.Code)
	suite.mockRegistry.AssertExpectations(suite.T())
}

func (suite *SessionHandlerTestSuite) TestSendGift_RequiresActiveSession() {
	sessionID := uuid.NewString()
	suite.mockRegistry.On("Gift", mock.Anything, sessionID, mock.Anything, mock.Anything).
		Return(apperrors.ErrConflict).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/gift", sessionID), gin.H{
		"amount": "5.00",
	})

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *SessionHandlerTestSuite) TestSendGift_UnknownSession() {
	sessionID := uuid.NewString()
	suite.mockRegistry.On("Gift", mock.Anything, sessionID, mock.Anything, mock.Anything).
		Return(apperrors.ErrNotFound).Once()

	w := suite.postJSON(fmt.Sprintf("/api/v1/sessions/%s/gift", sessionID), gin.H{
		"amount": "5.00",
	})

	suite.Equal(http.StatusNotFound, w.Code)
}

func TestSessionHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerTestSuite))
}
