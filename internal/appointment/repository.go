package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateSlot       = errors.New("an active appointment already holds this exact slot")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// Doctor directory
	SearchDoctors(ctx context.Context, query string, limit int) ([]Doctor, error)
	RateDoctor(ctx context.Context, id uuid.UUID, stars int) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks: everything not cancelled on that doctor's day
	ListActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// Listing; a nil date means every date
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// Creation and updates
	CreatePendingAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	RecordEncounter(ctx context.Context, id uuid.UUID, enc Encounter) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Expiry
	ListPending(ctx context.Context) ([]Appointment, error)
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
