package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	portssvc "github.com/soulsight/soulsight_backend/internal/core/ports/services"
	"github.com/soulsight/soulsight_backend/internal/middleware"
)

// Scheduler runs the periodic background cycles of the engine. Currently that
// is the payout aggregation job.
type Scheduler struct {
	cron       *cron.Cron
	payoutSvc  portssvc.PayoutSvcFacade
	payoutSpec string
	logger     *slog.Logger
}

// New creates a scheduler with all jobs registered. Cron specs use the
// six-field form with seconds, evaluated in UTC.
func New(payoutSvc portssvc.PayoutSvcFacade, payoutSpec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		payoutSvc:  payoutSvc,
		payoutSpec: payoutSpec,
		logger:     logger,
	}

	if _, err := s.cron.AddFunc(payoutSpec, func() {
		s.runWithRecovery("payout_cycle", s.runPayoutCycle)
	}); err != nil {
		return nil, fmt.Errorf("failed to register payout job (%q): %w", payoutSpec, err)
	}

	return s, nil
}

// Start begins job execution in the background.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", slog.String("payout_spec", s.payoutSpec))
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runPayoutCycle() {
	jobLogger := s.logger.With(slog.String("job", "payout_cycle"))
	ctx := middleware.ContextWithLogger(context.Background(), jobLogger)

	if _, err := s.payoutSvc.RunOnce(ctx, time.Now().UTC()); err != nil {
		jobLogger.Error("Payout cycle failed", slog.String("error", err.Error()))
	}
}

// runWithRecovery keeps a panicking job from taking the process down.
func (s *Scheduler) runWithRecovery(name string, job func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked",
				slog.String("job", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	job()
}
