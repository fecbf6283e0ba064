package appointment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

var (
	ErrDayUnavailable    = errors.New("doctor is not available on that day")
	ErrTimeUnavailable   = errors.New("doctor is not available at that time")
	ErrSlotTaken         = errors.New("slot is already taken")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown appointment status")
)

// DayUnavailableError carries the weekdays the doctor does work so clients
// can offer an alternative.
type DayUnavailableError struct {
	Day           schedule.Weekday
	AvailableDays []schedule.Weekday
}

func (e *DayUnavailableError) Error() string {
	days := make([]string, len(e.AvailableDays))
	for i, d := range e.AvailableDays {
		days[i] = d.String()
	}
	return fmt.Sprintf("doctor is not available on %s, available days: [%s]", e.Day, strings.Join(days, ", "))
}

func (e *DayUnavailableError) Unwrap() error { return ErrDayUnavailable }

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnavailable
	KindConflict
	KindInvalidTransition
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindValidation:
		return "validation_error"
	default:
		return "internal_error"
	}
}

// KindOf classifies an error returned by the Service.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDoctorNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrAppointmentNotFound):
		return KindNotFound
	case errors.Is(err, ErrDayUnavailable),
		errors.Is(err, ErrTimeUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrSlotBeingBooked):
		return KindConflict
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrSearchQueryRequired),
		errors.Is(err, ErrInvalidRating),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidDate):
		return KindValidation
	default:
		return KindInternal
	}
}
