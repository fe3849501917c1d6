package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the calendar-date format used throughout the booking domain.
// Bookings never span midnight, so a date plus two times of day fully
// describe a reservation window.
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the wall-clock format for start and end times.
// HH:MM strings compare lexically in chronological order, which keeps the
// overlap predicate expressible as plain range filters in the store.
const TimeOfDayLayout = "15:04"

var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCheckedOut, StatusNoShow:
		return true
	}
	return false
}

// BlocksAvailability reports whether a booking in this state occupies its
// time window for conflict purposes. Completed bookings still block their
// historical window; only cancellations and no-shows free the slot.
func (s Status) BlocksAvailability() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// statusTransitions is the allowed transition table. Pending is reachable
// only through a future approval workflow; the create path writes Confirmed
// directly, but Pending bookings still move through the same machine.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCheckedOut, StatusCancelled},
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResourceType discriminates the two bookable resource kinds.
type ResourceType string

const (
	ResourceDesk        ResourceType = "desk"
	ResourceMeetingRoom ResourceType = "meeting_room"
)

// ResourceRef identifies exactly one bookable resource. Modeling the
// reference as type+id makes the "exactly one of desk/meeting room" rule
// structural instead of a pair of nullable foreign keys.
type ResourceRef struct {
	Type ResourceType `json:"resource_type" bson:"resource_type" validate:"required,oneof=desk meeting_room"`
	ID   string       `json:"resource_id" bson:"resource_id" validate:"required"`
}

func (r ResourceRef) String() string {
	return string(r.Type) + "/" + r.ID
}

// Booking is the central entity of the reservation domain. Every read and
// write is scoped by TenantID; terminal bookings are retained, never deleted.
type Booking struct {
	ID                 string      `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TenantID           string      `json:"tenant_id" bson:"tenant_id" validate:"required"`
	UserID             string      `json:"user_id" bson:"user_id" validate:"required"`
	Resource           ResourceRef `json:"resource" bson:",inline" validate:"required"`
	Date               string      `json:"date" bson:"date" validate:"required,calendardate"`
	StartTime          string      `json:"start_time" bson:"start_time" validate:"required,timeofday"`
	EndTime            string      `json:"end_time" bson:"end_time" validate:"required,timeofday"`
	Status             Status      `json:"status" bson:"status" validate:"required,oneof=pending confirmed checked_in checked_out cancelled no_show"`
	Purpose            string      `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"omitempty,max=500"`
	CheckInTime        *time.Time  `json:"check_in_time,omitempty" bson:"check_in_time,omitempty"`
	CheckOutTime       *time.Time  `json:"check_out_time,omitempty" bson:"check_out_time,omitempty"`
	IsNoShow           bool        `json:"is_no_show" bson:"is_no_show"`
	CancellationReason string      `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty" validate:"omitempty,max=500"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt          time.Time   `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// BookingUpdate carries a partial update. Only non-nil fields are applied;
// the merged result is re-validated before it is written.
type BookingUpdate struct {
	Date      *string `json:"date,omitempty" validate:"omitempty,calendardate"`
	StartTime *string `json:"start_time,omitempty" validate:"omitempty,timeofday"`
	EndTime   *string `json:"end_time,omitempty" validate:"omitempty,timeofday"`
	Purpose   *string `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

// ChangesWindow reports whether applying u would move the reservation window,
// which forces an availability re-check excluding the booking itself.
func (u *BookingUpdate) ChangesWindow() bool {
	return u.Date != nil || u.StartTime != nil || u.EndTime != nil
}

// BookingView is the projection returned to callers: the booking plus the
// denormalized display names resolved from the resource directory.
type BookingView struct {
	Booking
	ResourceName string `json:"resource_name,omitempty"`
	FloorName    string `json:"floor_name,omitempty"`
	BuildingName string `json:"building_name,omitempty"`
	UserName     string `json:"user_name,omitempty"`
	UserEmail    string `json:"user_email,omitempty"`
}

// BookingFilter narrows tenant-wide booking searches.
type BookingFilter struct {
	UserID   string
	Resource *ResourceRef
	Status   Status
	DateFrom string
	DateTo   string
}

// Caller is the authenticated identity bound to every request by the
// gateway. The core trusts these values as given and never reads a tenant
// id from a request body.
type Caller struct {
	TenantID string
	UserID   string
	Roles    []string
}

const RoleAdmin = "admin"

func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// ValidTimeOfDay reports whether s is a well-formed HH:MM value.
func ValidTimeOfDay(s string) bool {
	return timeOfDayRegex.MatchString(s)
}

// ValidDate reports whether s is a well-formed calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// MinutesOfDay converts an HH:MM value to minutes since midnight.
// Callers must validate the value first.
func MinutesOfDay(s string) int {
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m
}

// Overlaps tests the half-open interval rule on two same-date windows:
// touching windows (end == start) do not conflict.
func Overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && end1 > start2
}

// WindowString formats a reservation window for error messages.
func WindowString(date, start, end string) string {
	return fmt.Sprintf("%s %s-%s", date, start, end)
}
