package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soulsight/soulsight_backend/internal/apperrors"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/dto"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

const (
	billingMaxAttempts  = 3
	billingRetryBackoff = 500 * time.Millisecond
)

// billingMonitor drives the per-minute billing of one active session. Exactly
// one monitor runs per active session; it is started by the registry on
// activation and stopped synchronously by Terminate.
type billingMonitor struct {
	registry *sessionRegistry
	entry    *sessionEntry
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newBillingMonitor(registry *sessionRegistry, entry *sessionEntry, interval time.Duration, logger *slog.Logger) *billingMonitor {
	return &billingMonitor{
		registry: registry,
		entry:    entry,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (m *billingMonitor) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	ctx = middleware.ContextWithLogger(ctx, m.logger)
	go m.run(ctx)
}

// stop cancels the billing loop and waits for it to exit. Any in-flight tick
// completes (or aborts) before stop returns, so afterwards no ledger write for
// this session can happen.
func (m *billingMonitor) stop() {
	m.cancel()
	<-m.done
}

func (m *billingMonitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		m.entry.mu.Lock()
		startedAt := *m.entry.session.StartedAt
		billed := m.entry.session.AccumulatedMinutes
		m.entry.mu.Unlock()

		// Ticks land on minute boundaries measured from StartedAt, so billing
		// never drifts against the session clock.
		next := startedAt.Add(time.Duration(billed+1) * m.interval)
		wait := time.Until(next)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		now := time.Now().UTC()
		elapsed := int64(now.Sub(startedAt) / m.interval)
		if elapsed <= billed {
			continue
		}

		for minute := billed + 1; minute <= elapsed; minute++ {
			if err := m.billMinute(ctx, minute); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				reason := domain.ReasonSystemFault
				if errors.Is(err, apperrors.ErrInsufficientFunds) {
					reason = domain.ReasonInsufficientFunds
					m.logger.Warn("Session balance exhausted", slog.Int64("minute_index", minute))
				} else {
					m.logger.Error("Billing tick failed after retries",
						slog.Int64("minute_index", minute),
						slog.String("error", err.Error()),
					)
				}
				m.terminateAsync(reason)
				return
			}
		}
	}
}

// billMinute settles one minute of the session. ErrInsufficientFunds is final;
// other storage errors get a bounded retry before the tick is declared failed.
func (m *billingMonitor) billMinute(ctx context.Context, minute int64) error {
	m.entry.mu.Lock()
	snapshot := m.entry.session
	m.entry.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= billingMaxAttempts; attempt++ {
		balance, err := m.registry.ledgerSvc.BillTick(ctx, &snapshot, minute)
		if err == nil {
			now := time.Now().UTC()
			m.entry.mu.Lock()
			m.entry.session.AccumulatedMinutes = minute
			m.entry.session.LastBilledAt = &now
			m.entry.session.LastUpdatedAt = now
			m.entry.mu.Unlock()

			if balance.LessThan(m.registry.cfg.LowBalanceThreshold) && m.registry.notifier != nil {
				m.registry.notifier.PublishControl(snapshot.SessionID, dto.ControlEvent{
					Subtype: dto.ControlLowBalanceWarning,
					Data: map[string]any{
						"balance":       balance.String(),
						"ratePerMinute": snapshot.RatePerMinute.String(),
					},
				})
			}
			return nil
		}
		if errors.Is(err, apperrors.ErrInsufficientFunds) || errors.Is(err, context.Canceled) {
			return err
		}

		lastErr = err
		m.logger.Warn("Billing tick attempt failed",
			slog.Int64("minute_index", minute),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < billingMaxAttempts {
			backoff := time.Duration(attempt) * billingRetryBackoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("%w: %v", apperrors.ErrSystemFault, lastErr)
}

// terminateAsync hands the terminal transition back to the registry on a fresh
// goroutine. The monitor loop has already decided to exit; Terminate's stop()
// will find the loop finished and return immediately.
func (m *billingMonitor) terminateAsync(reason domain.TerminationReason) {
	sessionID := m.entry.session.SessionID
	go func() {
		bgCtx := middleware.ContextWithLogger(context.Background(), m.logger)
		if err := m.registry.Terminate(bgCtx, sessionID, reason); err != nil {
			m.logger.Error("Monitor-initiated termination failed",
				slog.String("reason", string(reason)),
				slog.String("error", err.Error()),
			)
		}
	}()
}
