package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	portsrepo "github.com/soulsight/soulsight_backend/internal/core/ports/repositories"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// RegistryConfig carries the tunables of the session registry and its billing
// monitors.
type RegistryConfig struct {
	BillingInterval       time.Duration
	ReadyWaitTimeout      time.Duration
	DisconnectGracePeriod time.Duration
	LowBalanceThreshold   decimal.Decimal
}

// sessionEntry is the registry's record of one live session. The entry mutex
// serializes every state mutation of that session; the registry map lock is
// never held across a transition.
type sessionEntry struct {
	mu      sync.Mutex
	session domain.ReadingSession

	readyClient bool
	readyReader bool

	monitor     *billingMonitor
	readyTimer  *time.Timer
	graceTimers map[string]*time.Timer

	// closing is set by the first Terminate call; later callers see the session
	// as already on its way out and return without acting.
	closing bool
}

// sessionRegistry is the authoritative owner of live session state. Sessions
// live in memory until they reach a terminal state, at which point they are
// archived and dropped from the map.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	ledgerSvc        portssvc.LedgerSvcFacade
	ledgerRepo       portsrepo.LedgerRepositoryFacade
	availabilityRepo portsrepo.AvailabilityRepositoryFacade
	sessionRepo      portsrepo.SessionArchiveRepositoryFacade

	notifier portssvc.SessionNotifier

	cfg        RegistryConfig
	baseLogger *slog.Logger
}

// NewSessionRegistry creates a new SessionRegistry. The signaling notifier is
// wired afterwards via SetNotifier to break the construction cycle with the hub.
func NewSessionRegistry(
	ledgerSvc portssvc.LedgerSvcFacade,
	ledgerRepo portsrepo.LedgerRepositoryFacade,
	availabilityRepo portsrepo.AvailabilityRepositoryFacade,
	sessionRepo portsrepo.SessionArchiveRepositoryFacade,
	cfg RegistryConfig,
	baseLogger *slog.Logger,
) *sessionRegistry {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	return &sessionRegistry{
		sessions:         make(map[string]*sessionEntry),
		ledgerSvc:        ledgerSvc,
		ledgerRepo:       ledgerRepo,
		availabilityRepo: availabilityRepo,
		sessionRepo:      sessionRepo,
		cfg:              cfg,
		baseLogger:       baseLogger,
	}
}

var _ portssvc.SessionRegistrySvcFacade = (*sessionRegistry)(nil)

// SetNotifier wires the signaling layer in. Must be called before the first
// session is created.
func (r *sessionRegistry) SetNotifier(n portssvc.SessionNotifier) {
	r.notifier = n
}

// Create validates accounts and reader availability, books the covering slot
// and registers a pending session.
func (r *sessionRegistry) Create(ctx context.Context, req dto.CreateSessionRequest) (*domain.ReadingSession, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if req.RatePerMinute.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.ErrValidation
	}

	client, err := r.ledgerRepo.FindAccountByID(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("client account lookup failed: %w", err)
	}
	if client.Kind != domain.AccountClient {
		return nil, apperrors.ErrValidation
	}
	reader, err := r.ledgerRepo.FindAccountByID(ctx, req.ReaderID)
	if err != nil {
		return nil, fmt.Errorf("reader account lookup failed: %w", err)
	}
	if reader.Kind != domain.AccountReader {
		return nil, apperrors.ErrValidation
	}

	// The first minute is charged at the first tick; refuse sessions that would
	// fail it immediately.
	if client.Balance.LessThan(req.RatePerMinute) {
		return nil, apperrors.ErrInsufficientFunds
	}

	if r.readerHasLiveSession(req.ReaderID) {
		return nil, apperrors.ErrReaderUnavailable
	}

	now := time.Now().UTC()
	slot, err := r.availabilityRepo.FindOpenSlotAt(ctx, req.ReaderID, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrReaderUnavailable
		}
		return nil, err
	}
	if err := r.availabilityRepo.UpdateSlotStatus(ctx, slot.SlotID, domain.SlotOpen, domain.SlotBooked); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrReaderUnavailable
		}
		return nil, err
	}

	entry := &sessionEntry{
		session: domain.ReadingSession{
			SessionID:     uuid.NewString(),
			ClientID:      req.ClientID,
			ReaderID:      req.ReaderID,
			Modality:      req.Modality,
			RatePerMinute: req.RatePerMinute,
			CurrencyCode:  domain.DefaultCurrency,
			State:         domain.StatePending,
			SlotID:        slot.SlotID,
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				LastUpdatedAt: now,
			},
		},
		graceTimers: make(map[string]*time.Timer),
	}
	sessionID := entry.session.SessionID

	r.mu.Lock()
	// A second create for the same reader may have slipped past the earlier
	// check; the map is the source of truth.
	for _, other := range r.sessions {
		if other.session.ReaderID == req.ReaderID {
			r.mu.Unlock()
			// Undo the booking we just took.
			if relErr := r.availabilityRepo.UpdateSlotStatus(ctx, slot.SlotID, domain.SlotBooked, domain.SlotOpen); relErr != nil {
				logger.Error("Failed to release slot after create race", slog.String("slot_id", slot.SlotID), slog.String("error", relErr.Error()))
			}
			return nil, apperrors.ErrReaderUnavailable
		}
	}
	r.sessions[sessionID] = entry
	r.mu.Unlock()

	entry.mu.Lock()
	entry.readyTimer = time.AfterFunc(r.cfg.ReadyWaitTimeout, func() {
		bgCtx := middleware.ContextWithLogger(context.Background(), r.baseLogger.With(slog.String("session_id", sessionID)))
		if err := r.Terminate(bgCtx, sessionID, domain.ReasonCancelled); err != nil {
			r.baseLogger.Error("Ready-wait cancellation failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
	})
	snapshot := entry.session
	entry.mu.Unlock()

	logger.Info("Session created",
		slog.String("session_id", sessionID),
		slog.String("client_id", req.ClientID),
		slog.String("reader_id", req.ReaderID),
		slog.String("modality", string(req.Modality)),
		slog.String("rate_per_minute", req.RatePerMinute.String()),
	)
	return &snapshot, nil
}

// MarkReady records a participant's ready signal. The second distinct
// participant flips the session to active and starts its billing monitor.
func (r *sessionRegistry) MarkReady(ctx context.Context, sessionID, participantID string) (*domain.ReadingSession, error) {
	entry, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch participantID {
	case entry.session.ClientID:
		entry.readyClient = true
	case entry.session.ReaderID:
		entry.readyReader = true
	default:
		return nil, apperrors.ErrUnauthorized
	}

	if entry.session.State == domain.StateActive || entry.closing {
		snapshot := entry.session
		return &snapshot, nil
	}
	if entry.session.State != domain.StatePending {
		return nil, apperrors.ErrConflict
	}

	if entry.readyClient && entry.readyReader {
		r.transition(entry, domain.StateActive)
		now := time.Now().UTC()
		entry.session.StartedAt = &now
		entry.session.LastUpdatedAt = now

		if entry.readyTimer != nil {
			entry.readyTimer.Stop()
			entry.readyTimer = nil
		}

		entry.monitor = newBillingMonitor(r, entry, r.cfg.BillingInterval,
			r.baseLogger.With(slog.String("session_id", sessionID)))
		entry.monitor.start()

		middleware.GetLoggerFromCtx(ctx).Info("Session activated",
			slog.String("session_id", sessionID),
		)
	}

	snapshot := entry.session
	return &snapshot, nil
}

// Terminate moves the session to the terminal state matching reason. When it
// returns, the session's billing monitor has stopped and no further ledger
// writes for this session can occur. Terminating an already-terminating session
// is a no-op.
func (r *sessionRegistry) Terminate(ctx context.Context, sessionID string, reason domain.TerminationReason) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	entry, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	target := reason.State()

	entry.mu.Lock()
	if entry.closing {
		entry.mu.Unlock()
		return nil
	}
	// An end request on a pending session is a cancellation, not a completion.
	if entry.session.State == domain.StatePending && target != domain.StateCancelled {
		reason = domain.ReasonCancelled
		target = domain.StateCancelled
	}
	if !domain.CanTransition(entry.session.State, target) {
		entry.mu.Unlock()
		return apperrors.ErrConflict
	}
	entry.closing = true
	monitor := entry.monitor
	readyTimer := entry.readyTimer
	graceTimers := entry.graceTimers
	entry.graceTimers = make(map[string]*time.Timer)
	entry.mu.Unlock()

	// Stop the billing loop first, outside the entry lock: an in-flight tick
	// needs the lock to record its result and must be allowed to finish.
	if monitor != nil {
		monitor.stop()
	}
	if readyTimer != nil {
		readyTimer.Stop()
	}
	for _, t := range graceTimers {
		t.Stop()
	}

	entry.mu.Lock()
	r.transition(entry, target)
	now := time.Now().UTC()
	entry.session.EndedAt = &now
	entry.session.LastUpdatedAt = now
	entry.session.TerminationReason = &reason
	snapshot := entry.session
	entry.mu.Unlock()

	// A cancelled booking frees the slot; any other end leaves the slot consumed.
	if target == domain.StateCancelled && snapshot.SlotID != "" {
		if err := r.availabilityRepo.UpdateSlotStatus(ctx, snapshot.SlotID, domain.SlotBooked, domain.SlotOpen); err != nil {
			logger.Error("Failed to release slot on cancellation",
				slog.String("session_id", sessionID),
				slog.String("slot_id", snapshot.SlotID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := r.sessionRepo.ArchiveSession(ctx, snapshot); err != nil {
		logger.Error("Failed to archive session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	// The registry forgets the session before the signaling channel closes: a
	// racing Join re-checks the registry after inserting a fresh channel and
	// relies on this order to see the session gone.
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.PublishControl(sessionID, dto.ControlEvent{
			Subtype: dto.ControlSessionEnded,
			Data:    map[string]any{"reason": reason.Public()},
		})
		r.notifier.CloseSession(sessionID)
	}

	logger.Info("Session terminated",
		slog.String("session_id", sessionID),
		slog.String("state", string(target)),
		slog.String("reason", string(reason)),
		slog.Int64("minutes_billed", snapshot.AccumulatedMinutes),
	)
	return nil
}

// Gift writes a split gift transfer for a live session. The entry lock is held
// across both the state check and the ledger write: a concurrent Terminate
// waits for an in-flight gift to settle, and once Terminate has returned the
// closing flag and map removal reject any later gift.
func (r *sessionRegistry) Gift(ctx context.Context, sessionID string, amount decimal.Decimal, memo string) error {
	entry, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session.State != domain.StateActive || entry.closing {
		return apperrors.ErrConflict
	}
	snapshot := entry.session
	return r.ledgerSvc.Gift(ctx, &snapshot, amount, memo)
}

// Get returns a snapshot of a live session.
func (r *sessionRegistry) Get(ctx context.Context, sessionID string) (*domain.ReadingSession, error) {
	entry, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	snapshot := entry.session
	entry.mu.Unlock()
	return &snapshot, nil
}

// Participants returns the client and reader ids of a live session.
func (r *sessionRegistry) Participants(sessionID string) (string, string, error) {
	entry, err := r.lookup(sessionID)
	if err != nil {
		return "", "", err
	}
	// ClientID and ReaderID are immutable after creation.
	return entry.session.ClientID, entry.session.ReaderID, nil
}

// HandlePresence reacts to a participant's connection state. Going offline
// while active arms the disconnect grace timer; coming back online disarms it.
func (r *sessionRegistry) HandlePresence(sessionID, participantID string, online bool) {
	entry, err := r.lookup(sessionID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if participantID != entry.session.ClientID && participantID != entry.session.ReaderID {
		return
	}

	if online {
		if t, ok := entry.graceTimers[participantID]; ok {
			t.Stop()
			delete(entry.graceTimers, participantID)
		}
		return
	}

	if entry.session.State != domain.StateActive || entry.closing {
		return
	}
	if _, armed := entry.graceTimers[participantID]; armed {
		return
	}
	entry.graceTimers[participantID] = time.AfterFunc(r.cfg.DisconnectGracePeriod, func() {
		bgCtx := middleware.ContextWithLogger(context.Background(), r.baseLogger.With(
			slog.String("session_id", sessionID),
			slog.String("participant_id", participantID),
		))
		if err := r.Terminate(bgCtx, sessionID, domain.ReasonDisconnected); err != nil {
			r.baseLogger.Error("Disconnect termination failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
	})
	r.baseLogger.Debug("Disconnect grace timer armed",
		slog.String("session_id", sessionID),
		slog.String("participant_id", participantID),
	)
}

// Shutdown terminates every live session. Pending sessions cancel; active ones
// end as disconnected.
func (r *sessionRegistry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		entry, err := r.lookup(id)
		if err != nil {
			continue
		}
		entry.mu.Lock()
		reason := domain.ReasonDisconnected
		if entry.session.State == domain.StatePending {
			reason = domain.ReasonCancelled
		}
		entry.mu.Unlock()

		if err := r.Terminate(ctx, id, reason); err != nil {
			r.baseLogger.Error("Shutdown termination failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}

// lookup resolves a session id to its live entry.
func (r *sessionRegistry) lookup(sessionID string) (*sessionEntry, error) {
	r.mu.RLock()
	entry, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

// readerHasLiveSession reports whether the reader is a party to any live session.
func (r *sessionRegistry) readerHasLiveSession(readerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.sessions {
		if entry.session.ReaderID == readerID {
			return true
		}
	}
	return false
}

// transition applies a state change after consulting the transition table.
// Leaving a terminal state can only happen through a concurrency bug, so it
// fails loudly instead of corrupting billing state. Callers hold entry.mu.
func (r *sessionRegistry) transition(entry *sessionEntry, to domain.SessionState) {
	from := entry.session.State
	if from.Terminal() {
		panic(fmt.Sprintf("session %s: transition out of terminal state %s", entry.session.SessionID, from))
	}
	if !domain.CanTransition(from, to) {
		panic(fmt.Sprintf("session %s: invalid transition %s -> %s", entry.session.SessionID, from, to))
	}
	entry.session.State = to
}
