package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/internal/bookings/repository"
	"workspacemgr/pkg/errors"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
)

// AvailabilityService answers the two availability questions of the booking
// domain: is one specific resource free for a window, and which resources on
// a floor are free for a window. Results are point-in-time and can go stale
// the moment a concurrent booking commits; the write path re-checks inside
// its transaction.
type AvailabilityService interface {
	// CheckResource returns nil when the resource exists, is bookable and
	// has no blocking booking overlapping the window. Otherwise it returns
	// an AppError describing which condition failed.
	CheckResource(ctx context.Context, tenantID string, ref model.ResourceRef, date, startTime, endTime, excludeBookingID string) error

	// IsAvailable is the boolean form of CheckResource for callers that do
	// not care why a slot is unavailable.
	IsAvailable(ctx context.Context, tenantID string, ref model.ResourceRef, date, startTime, endTime string) (bool, error)

	// FreeResourcesOnFloor lists the bookable resources of one type on a
	// floor with no blocking booking overlapping the window.
	FreeResourcesOnFloor(ctx context.Context, tenantID, floorID string, resourceType model.ResourceType, date, startTime, endTime string) (*model.FloorAvailability, error)
}

type availabilityService struct {
	bookings  repository.BookingRepository
	directory repository.DirectoryRepository
	log       *logger.Logger
}

func NewAvailabilityService(
	bookings repository.BookingRepository,
	directory repository.DirectoryRepository,
	log *logger.Logger,
) AvailabilityService {
	return &availabilityService{
		bookings:  bookings,
		directory: directory,
		log:       log,
	}
}

func validateWindow(date, startTime, endTime string) error {
	if !model.ValidDate(date) {
		return errors.Validation("date must be a valid YYYY-MM-DD date", nil)
	}
	if !model.ValidTimeOfDay(startTime) {
		return errors.Validation("start_time must be a valid HH:MM time", nil)
	}
	if !model.ValidTimeOfDay(endTime) {
		return errors.Validation("end_time must be a valid HH:MM time", nil)
	}
	if endTime <= startTime {
		return errors.Validation("end_time must be after start_time", nil)
	}
	return nil
}

func (s *availabilityService) CheckResource(
	ctx context.Context,
	tenantID string,
	ref model.ResourceRef,
	date, startTime, endTime, excludeBookingID string,
) error {
	if err := validateWindow(date, startTime, endTime); err != nil {
		return err
	}

	resource, err := s.directory.FindResource(ctx, tenantID, ref)
	if err != nil {
		if stderrors.Is(err, bookingserrors.ErrResourceNotFound) {
			return errors.NotFoundWithID("resource", ref.String())
		}
		return errors.Internal("failed to look up resource", err)
	}
	if !resource.IsAvailable {
		return errors.Conflict(fmt.Sprintf("resource %s is not bookable", ref))
	}

	overlapping, err := s.bookings.FindOverlapping(ctx, tenantID, ref, date, startTime, endTime, excludeBookingID)
	if err != nil {
		return errors.Internal("failed to check for conflicting bookings", err)
	}
	if len(overlapping) > 0 {
		s.log.Debug("slot conflict detected",
			"resource", ref.String(),
			"window", model.WindowString(date, startTime, endTime),
			"conflicts", len(overlapping),
		)
		return errors.Conflict(fmt.Sprintf(
			"resource %s is already booked during %s",
			ref, model.WindowString(date, startTime, endTime),
		))
	}

	return nil
}

func (s *availabilityService) IsAvailable(
	ctx context.Context,
	tenantID string,
	ref model.ResourceRef,
	date, startTime, endTime string,
) (bool, error) {
	err := s.CheckResource(ctx, tenantID, ref, date, startTime, endTime, "")
	if err == nil {
		return true, nil
	}
	if appErr := errors.AsAppError(err); appErr.Code == errors.CodeConflict {
		return false, nil
	}
	return false, err
}

func (s *availabilityService) FreeResourcesOnFloor(
	ctx context.Context,
	tenantID, floorID string,
	resourceType model.ResourceType,
	date, startTime, endTime string,
) (*model.FloorAvailability, error) {
	if err := validateWindow(date, startTime, endTime); err != nil {
		return nil, err
	}

	if _, err := s.directory.FindFloor(ctx, tenantID, floorID); err != nil {
		if stderrors.Is(err, bookingserrors.ErrFloorNotFound) {
			return nil, errors.NotFoundWithID("floor", floorID)
		}
		return nil, errors.Internal("failed to look up floor", err)
	}

	resources, err := s.directory.ListFloorResources(ctx, tenantID, floorID, resourceType)
	if err != nil {
		return nil, errors.Internal("failed to list floor resources", err)
	}

	bookedIDs, err := s.bookings.FindBookedResourceIDs(ctx, tenantID, resourceType, date, startTime, endTime)
	if err != nil {
		return nil, errors.Internal("failed to list booked resources", err)
	}

	booked := make(map[string]struct{}, len(bookedIDs))
	for _, id := range bookedIDs {
		booked[id] = struct{}{}
	}

	free := make([]*model.Resource, 0, len(resources))
	for _, res := range resources {
		if !res.IsAvailable {
			continue
		}
		if _, taken := booked[res.ID]; taken {
			continue
		}
		free = append(free, res)
	}

	return &model.FloorAvailability{
		FloorID:   floorID,
		Type:      resourceType,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		Free:      free,
		CheckedAt: time.Now().UTC(),
	}, nil
}
