package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusDone      AppointmentStatus = "done"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusDone, StatusCancelled},
	StatusConfirmed: {StatusDone, StatusCancelled},
}

func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusDone:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// done and cancelled are terminal.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Active appointments occupy their slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Doctor struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Specialization string
	Price          float64
	Avatar         string
	Timings        schedule.WeeklyAvailability
	Star           float64 // average rating, capped at 5
	TotalStars     int
	Evaluations    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Encounter holds what the doctor recorded for a visit.
type Encounter struct {
	Diagnosis         string
	Prescription      string
	ExaminationResult string
	Documents         map[string]string
}

type Appointment struct {
	ID             uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	Date           time.Time
	Time           schedule.TimeOfDay
	Status         AppointmentStatus
	PatientName    string
	PatientAvatar  string
	DoctorAttended bool
	Encounter
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// StartsAt combines the calendar date with the clock time.
func (a Appointment) StartsAt() time.Time {
	return a.Date.Add(time.Duration(a.Time) * time.Minute)
}

// SlotCandidate is one entry of the slot grid shown to patients.
type SlotCandidate struct {
	Time      schedule.TimeOfDay `json:"time"`
	Available bool               `json:"available"`
}

type BookingRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Time      schedule.TimeOfDay
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
