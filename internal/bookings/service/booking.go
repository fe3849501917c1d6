package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/internal/bookings/repository"
	"workspacemgr/internal/bookings/validator"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/errors"
	"workspacemgr/pkg/events"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
	"workspacemgr/pkg/sanitizer"
)

// SearchPage is a page of bookings plus the matching total for pagination.
type SearchPage struct {
	Bookings   []*model.BookingView
	TotalCount int64
}

// BookingService owns the booking lifecycle. All operations act on behalf of
// a caller identity and are scoped to the caller's tenant; a booking from
// another tenant behaves exactly like a missing one.
type BookingService interface {
	Create(ctx context.Context, caller model.Caller, booking *model.Booking) (*model.BookingView, error)
	GetByID(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
	Search(ctx context.Context, caller model.Caller, filter model.BookingFilter, limit int, offset int64) (*SearchPage, error)
	GetUserBookings(ctx context.Context, caller model.Caller, limit int, offset int64) (*SearchPage, error)
	GetUpcoming(ctx context.Context, caller model.Caller, days int, limit int, offset int64) (*SearchPage, error)
	Update(ctx context.Context, caller model.Caller, id string, update *model.BookingUpdate) (*model.BookingView, error)
	Cancel(ctx context.Context, caller model.Caller, id, reason string) (*model.BookingView, error)
	CheckIn(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
	CheckOut(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
}

type bookingService struct {
	cfg          *config.Config
	bookings     repository.BookingRepository
	locks        repository.LockRepository
	directory    repository.DirectoryRepository
	availability AvailabilityService
	validator    validator.BookingValidator
	publisher    events.Publisher
	log          *logger.Logger
	now          func() time.Time
}

func NewBookingService(
	cfg *config.Config,
	bookings repository.BookingRepository,
	locks repository.LockRepository,
	directory repository.DirectoryRepository,
	availability AvailabilityService,
	bookingValidator validator.BookingValidator,
	publisher events.Publisher,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		cfg:          cfg,
		bookings:     bookings,
		locks:        locks,
		directory:    directory,
		availability: availability,
		validator:    bookingValidator,
		publisher:    publisher,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// slotLockID keys the advisory lock serializing writers on one slot. Two
// requests for the same resource and start collide here even before the
// transactional overlap re-check.
func slotLockID(tenantID string, ref model.ResourceRef, date, startTime string) string {
	return fmt.Sprintf("slot_%s_%s_%s_%s_%s", tenantID, ref.Type, ref.ID, date, startTime)
}

func (s *bookingService) Create(ctx context.Context, caller model.Caller, booking *model.Booking) (*model.BookingView, error) {
	booking.ID = ""
	booking.TenantID = caller.TenantID
	booking.UserID = caller.UserID
	booking.Status = model.StatusConfirmed
	booking.Purpose = sanitizer.NormalizeFreeText(booking.Purpose)
	booking.CheckInTime = nil
	booking.CheckOutTime = nil
	booking.IsNoShow = false
	booking.CancellationReason = ""
	booking.CancelledAt = nil

	if err := s.validator.Validate(booking); err != nil {
		return nil, err
	}

	lockID := slotLockID(booking.TenantID, booking.Resource, booking.Date, booking.StartTime)
	if err := s.locks.Acquire(ctx, lockID, s.cfg.SlotLockTTL); err != nil {
		if stderrors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, errors.Conflict("another booking for this slot is in progress, try again")
		}
		return nil, errors.Internal("failed to acquire slot lock", err)
	}
	defer s.releaseLock(ctx, lockID)

	err := s.bookings.ExecuteTransaction(ctx, func(sc context.Context) error {
		// Availability is re-checked inside the transaction so a booking
		// committed between the handler's check and this point is seen.
		if err := s.availability.CheckResource(sc, booking.TenantID, booking.Resource, booking.Date, booking.StartTime, booking.EndTime, ""); err != nil {
			return err
		}
		return s.bookings.Create(sc, booking)
	})
	if err != nil {
		return nil, s.wrapError(err, "create booking")
	}

	s.log.Info("booking created",
		"booking_id", booking.ID,
		"tenant_id", booking.TenantID,
		"resource", booking.Resource.String(),
		"window", model.WindowString(booking.Date, booking.StartTime, booking.EndTime),
	)
	s.publisher.Publish(ctx, events.TypeBookingCreated, booking)

	return s.project(ctx, booking), nil
}

func (s *bookingService) GetByID(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	booking, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, booking), nil
}

func (s *bookingService) Search(ctx context.Context, caller model.Caller, filter model.BookingFilter, limit int, offset int64) (*SearchPage, error) {
	if !caller.IsAdmin() {
		return nil, errors.Forbidden("tenant-wide booking search requires the admin role")
	}
	return s.page(ctx, repository.SearchQuery{
		TenantID: caller.TenantID,
		Filter:   filter,
		Sort:     repository.SortDateDesc,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *bookingService) GetUserBookings(ctx context.Context, caller model.Caller, limit int, offset int64) (*SearchPage, error) {
	return s.page(ctx, repository.SearchQuery{
		TenantID: caller.TenantID,
		Filter:   model.BookingFilter{UserID: caller.UserID},
		Sort:     repository.SortDateDesc,
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *bookingService) GetUpcoming(ctx context.Context, caller model.Caller, days int, limit int, offset int64) (*SearchPage, error) {
	if days <= 0 {
		days = s.cfg.MaxUpcomingDays
	}
	if days > s.cfg.MaxUpcomingDays {
		return nil, errors.InvalidInput(fmt.Sprintf("days must be at most %d", s.cfg.MaxUpcomingDays))
	}

	today := s.now().Format(model.DateLayout)
	until := s.now().AddDate(0, 0, days).Format(model.DateLayout)

	return s.page(ctx, repository.SearchQuery{
		TenantID: caller.TenantID,
		Filter: model.BookingFilter{
			UserID:   caller.UserID,
			Status:   model.StatusConfirmed,
			DateFrom: today,
			DateTo:   until,
		},
		Sort:   repository.SortDateAsc,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *bookingService) page(ctx context.Context, q repository.SearchQuery) (*SearchPage, error) {
	bookings, err := s.bookings.Search(ctx, q)
	if err != nil {
		return nil, errors.Internal("failed to search bookings", err)
	}
	total, err := s.bookings.CountSearch(ctx, q)
	if err != nil {
		return nil, errors.Internal("failed to count bookings", err)
	}

	views := make([]*model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, s.project(ctx, b))
	}
	return &SearchPage{Bookings: views, TotalCount: total}, nil
}

func (s *bookingService) Update(ctx context.Context, caller model.Caller, id string, update *model.BookingUpdate) (*model.BookingView, error) {
	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, err
	}

	if update.ChangesWindow() {
		// Moving the window contends with creates on the target slot, so it
		// takes the same lock. This read only names the slot for the lock
		// key; the authoritative read happens inside the transaction.
		current, err := s.loadOwned(ctx, caller, id)
		if err != nil {
			return nil, err
		}
		target := *current
		applyWindow(&target, update)

		lockID := slotLockID(target.TenantID, target.Resource, target.Date, target.StartTime)
		if err := s.locks.Acquire(ctx, lockID, s.cfg.SlotLockTTL); err != nil {
			if stderrors.Is(err, bookingserrors.ErrLockHeld) {
				return nil, errors.Conflict("another booking for this slot is in progress, try again")
			}
			return nil, errors.Internal("failed to acquire slot lock", err)
		}
		defer s.releaseLock(ctx, lockID)
	}

	// Read, guard, merge and write share one transaction: a cancel or
	// check-out committing concurrently is seen here instead of being
	// overwritten with stale state.
	var merged *model.Booking
	err := s.bookings.ExecuteTransaction(ctx, func(sc context.Context) error {
		current, err := s.bookings.FindByID(sc, caller.TenantID, id)
		if err != nil {
			return err
		}
		if !s.mayManage(caller, current) {
			return errors.Forbidden("only the booking owner or an admin can modify this booking")
		}
		if current.Status.IsTerminal() {
			return errors.InvalidState(fmt.Sprintf("cannot modify a booking in status %s", current.Status))
		}

		m := *current
		applyWindow(&m, update)
		if update.Purpose != nil {
			m.Purpose = sanitizer.NormalizeFreeText(*update.Purpose)
		}
		if err := s.validator.Validate(&m); err != nil {
			return err
		}

		if update.ChangesWindow() {
			// Excluding the booking itself from its own conflict set.
			if err := s.availability.CheckResource(sc, m.TenantID, m.Resource, m.Date, m.StartTime, m.EndTime, id); err != nil {
				return err
			}
		}
		if err := s.bookings.Update(sc, caller.TenantID, id, &m); err != nil {
			return err
		}
		merged = &m
		return nil
	})
	if err != nil {
		return nil, s.wrapError(err, "update booking")
	}

	s.log.Info("booking updated",
		"booking_id", id,
		"tenant_id", merged.TenantID,
		"window", model.WindowString(merged.Date, merged.StartTime, merged.EndTime),
	)
	s.publisher.Publish(ctx, events.TypeBookingUpdated, merged)

	return s.project(ctx, merged), nil
}

func applyWindow(b *model.Booking, u *model.BookingUpdate) {
	if u.Date != nil {
		b.Date = *u.Date
	}
	if u.StartTime != nil {
		b.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		b.EndTime = *u.EndTime
	}
}

func (s *bookingService) Cancel(ctx context.Context, caller model.Caller, id, reason string) (*model.BookingView, error) {
	booking, err := s.transition(ctx, caller, id, model.StatusCancelled, func(b *model.Booking) error {
		now := s.now()
		b.CancellationReason = sanitizer.NormalizeFreeText(reason)
		b.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", "booking_id", id, "tenant_id", caller.TenantID)
	s.publisher.Publish(ctx, events.TypeBookingCancelled, booking)
	return s.project(ctx, booking), nil
}

func (s *bookingService) CheckIn(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	booking, err := s.transition(ctx, caller, id, model.StatusCheckedIn, func(b *model.Booking) error {
		if err := s.checkInWindowOpen(b); err != nil {
			return err
		}
		now := s.now()
		b.CheckInTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking checked in", "booking_id", id, "tenant_id", caller.TenantID)
	s.publisher.Publish(ctx, events.TypeBookingCheckedIn, booking)
	return s.project(ctx, booking), nil
}

func (s *bookingService) CheckOut(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	booking, err := s.transition(ctx, caller, id, model.StatusCheckedOut, func(b *model.Booking) error {
		now := s.now()
		b.CheckOutTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking checked out", "booking_id", id, "tenant_id", caller.TenantID)
	s.publisher.Publish(ctx, events.TypeBookingCheckedOut, booking)
	return s.project(ctx, booking), nil
}

// checkInWindowOpen enforces the check-in window: from CheckInEarlyWindow
// before the start until the end of the booking, on the booking's date.
func (s *bookingService) checkInWindowOpen(b *model.Booking) error {
	now := s.now()
	today := now.Format(model.DateLayout)
	if b.Date != today {
		return errors.InvalidState(fmt.Sprintf("check-in is only possible on the booking date %s", b.Date))
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	opensAt := model.MinutesOfDay(b.StartTime) - int(s.cfg.CheckInEarlyWindow.Minutes())
	closesAt := model.MinutesOfDay(b.EndTime)

	if nowMinutes < opensAt {
		return errors.InvalidState(fmt.Sprintf("check-in opens at most %s before the %s start", s.cfg.CheckInEarlyWindow, b.StartTime))
	}
	if nowMinutes >= closesAt {
		return errors.InvalidState(fmt.Sprintf("check-in closed, the booking ended at %s", b.EndTime))
	}
	return nil
}

// transition re-reads the booking inside a transaction, verifies the state
// machine permits the move, applies mutate and writes the result. The
// re-read inside the transaction is what makes concurrent transitions on the
// same booking settle to exactly one winner.
func (s *bookingService) transition(
	ctx context.Context,
	caller model.Caller,
	id string,
	next model.Status,
	mutate func(*model.Booking) error,
) (*model.Booking, error) {
	var booking *model.Booking

	err := s.bookings.ExecuteTransaction(ctx, func(sc context.Context) error {
		current, err := s.bookings.FindByID(sc, caller.TenantID, id)
		if err != nil {
			return err
		}
		if !s.mayManage(caller, current) {
			return errors.Forbidden("only the booking owner or an admin can modify this booking")
		}
		if !current.Status.CanTransitionTo(next) {
			return errors.InvalidState(fmt.Sprintf("cannot move a booking from %s to %s", current.Status, next))
		}

		current.Status = next
		if err := mutate(current); err != nil {
			return err
		}
		if err := s.bookings.Update(sc, caller.TenantID, id, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.wrapError(err, "transition booking")
	}
	return booking, nil
}

func (s *bookingService) loadOwned(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, caller.TenantID, id)
	if err != nil {
		return nil, s.wrapError(err, "load booking")
	}
	if !s.mayManage(caller, booking) {
		return nil, errors.Forbidden("only the booking owner or an admin can access this booking")
	}
	return booking, nil
}

func (s *bookingService) mayManage(caller model.Caller, booking *model.Booking) bool {
	return caller.IsAdmin() || booking.UserID == caller.UserID
}

func (s *bookingService) releaseLock(ctx context.Context, lockID string) {
	// Release on a detached context so a cancelled request still frees the
	// slot instead of waiting for the TTL.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.locks.Release(releaseCtx, lockID); err != nil {
		s.log.Warn("failed to release slot lock", "lock_id", lockID, "error", err)
	}
}

func (s *bookingService) wrapError(err error, op string) error {
	switch {
	case errors.IsAppError(err):
		return err
	case stderrors.Is(err, bookingserrors.ErrNotFound):
		return errors.NotFound("booking")
	case stderrors.Is(err, bookingserrors.ErrInvalidID):
		return errors.InvalidInput("invalid booking id")
	default:
		return errors.Internal("failed to "+op, err)
	}
}

// project resolves the directory names for a booking view. Lookups are best
// effort; a booking with a since-deleted desk still renders, just without
// the denormalized names.
func (s *bookingService) project(ctx context.Context, booking *model.Booking) *model.BookingView {
	view := &model.BookingView{Booking: *booking}

	resource, err := s.directory.FindResource(ctx, booking.TenantID, booking.Resource)
	if err != nil {
		return view
	}
	view.ResourceName = resource.Name

	if floor, err := s.directory.FindFloor(ctx, booking.TenantID, resource.FloorID); err == nil {
		view.FloorName = floor.Name
		if building, err := s.directory.FindBuilding(ctx, booking.TenantID, floor.BuildingID); err == nil {
			view.BuildingName = building.Name
		}
	}

	if user, err := s.directory.FindUser(ctx, booking.TenantID, booking.UserID); err == nil {
		view.UserName = user.Name
		view.UserEmail = user.Email
	}

	return view
}
