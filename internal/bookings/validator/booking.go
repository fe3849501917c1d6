package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"workspacemgr/pkg/errors"
	"workspacemgr/pkg/model"
)

// BookingValidator validates bookings and partial updates before they reach
// the persistence layer.
type BookingValidator interface {
	Validate(booking *model.Booking) error
	ValidateUpdate(update *model.BookingUpdate) error
}

type bookingValidator struct {
	validate *validator.Validate
}

func New() (BookingValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("timeofday", validateTimeOfDay); err != nil {
		return nil, fmt.Errorf("failed to register timeofday validation: %w", err)
	}
	if err := v.RegisterValidation("calendardate", validateCalendarDate); err != nil {
		return nil, fmt.Errorf("failed to register calendardate validation: %w", err)
	}

	return &bookingValidator{validate: v}, nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return model.ValidTimeOfDay(fl.Field().String())
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	return model.ValidDate(fl.Field().String())
}

func (bv *bookingValidator) Validate(booking *model.Booking) error {
	if err := bv.validate.Struct(booking); err != nil {
		return translateValidationErrors(err)
	}

	// Cross-field rule the tag grammar cannot express: the window must have
	// positive duration.
	if booking.EndTime <= booking.StartTime {
		return errors.Validation("end_time must be after start_time", nil)
	}

	return nil
}

func (bv *bookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if update == nil {
		return errors.InvalidInput("update payload is required")
	}
	if update.Date == nil && update.StartTime == nil && update.EndTime == nil && update.Purpose == nil {
		return errors.InvalidInput("update payload must set at least one field")
	}
	if err := bv.validate.Struct(update); err != nil {
		return translateValidationErrors(err)
	}
	return nil
}

func translateValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error(), nil)
	}

	messages := make([]string, 0, len(validationErrors))
	details := make(map[string]any, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msg := describeFieldError(fieldErr)
		messages = append(messages, msg)
		details[strings.ToLower(fieldErr.Field())] = msg
	}
	return errors.Validation(strings.Join(messages, "; "), details)
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "timeofday":
		return fmt.Sprintf("%s must be a valid HH:MM time", field)
	case "calendardate":
		return fmt.Sprintf("%s must be a valid YYYY-MM-DD date", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "mongodb":
		return fmt.Sprintf("%s must be a valid object id", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
