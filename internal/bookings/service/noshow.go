package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/internal/bookings/repository"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/events"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
)

const sweepLockID = "noshow_sweep"

// NoShowService flags confirmed bookings whose start time passed more than
// the grace period ago without a check-in. Run is safe to call repeatedly
// and from multiple instances; the sweep lock keeps one writer at a time and
// the conditional mark makes each flip happen at most once.
type NoShowService interface {
	// Run performs one sweep and returns the number of bookings flagged.
	Run(ctx context.Context) (int, error)

	// Start runs sweeps on the configured interval until ctx is cancelled.
	Start(ctx context.Context)
}

type noShowService struct {
	cfg       *config.Config
	bookings  repository.BookingRepository
	locks     repository.LockRepository
	publisher events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewNoShowService(
	cfg *config.Config,
	bookings repository.BookingRepository,
	locks repository.LockRepository,
	publisher events.Publisher,
	log *logger.Logger,
) NoShowService {
	return &noShowService{
		cfg:       cfg,
		bookings:  bookings,
		locks:     locks,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *noShowService) Run(ctx context.Context) (int, error) {
	if err := s.locks.Acquire(ctx, sweepLockID, s.cfg.SweepLockTTL); err != nil {
		if stderrors.Is(err, bookingserrors.ErrLockHeld) {
			s.log.Debug("no-show sweep already running elsewhere, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, sweepLockID); err != nil {
			s.log.Warn("failed to release sweep lock", "error", err)
		}
	}()

	now := s.now()
	cutoff := now.Add(-s.cfg.NoShowGrace)

	// The grace period only reaches back into the current day. Early in the
	// morning the cutoff still falls on yesterday; nothing today can be
	// overdue yet, and yesterday's stragglers were flagged by yesterday's
	// sweeps.
	if cutoff.Format(model.DateLayout) != now.Format(model.DateLayout) {
		return 0, nil
	}

	candidates, err := s.bookings.FindNoShowCandidates(ctx, repository.NoShowQuery{
		Date:        now.Format(model.DateLayout),
		StartBefore: cutoff.Format(model.TimeOfDayLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find no-show candidates: %w", err)
	}

	flagged := 0
	for _, booking := range candidates {
		marked, err := s.bookings.MarkNoShow(ctx, booking.ID)
		if err != nil {
			// One stuck booking must not stall the rest of the sweep.
			s.log.Error("failed to mark booking as no-show",
				"booking_id", booking.ID,
				"tenant_id", booking.TenantID,
				"error", err,
			)
			continue
		}
		if !marked {
			// The user checked in between the scan and the write.
			continue
		}

		flagged++
		booking.Status = model.StatusNoShow
		booking.IsNoShow = true
		s.publisher.Publish(ctx, events.TypeBookingNoShow, booking)
	}

	if flagged > 0 {
		s.log.Info("no-show sweep completed", "flagged", flagged, "candidates", len(candidates))
	}
	return flagged, nil
}

func (s *noShowService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.log.Info("no-show sweeper started", "interval", s.cfg.SweepInterval, "grace", s.cfg.NoShowGrace)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("no-show sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.log.Error("no-show sweep failed", "error", err)
			}
		}
	}
}
