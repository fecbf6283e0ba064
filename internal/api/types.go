package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type EncounterRequest struct {
	Diagnosis         string            `json:"diagnosis"`
	Prescription      string            `json:"prescription"`
	ExaminationResult string            `json:"examination_result"`
	Documents         map[string]string `json:"documents,omitempty"`
}

type RateDoctorRequest struct {
	Stars int `json:"stars"`
}

type SendOTPRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type AppointmentResponse struct {
	ID                uuid.UUID         `json:"id"`
	DoctorID          uuid.UUID         `json:"doctor_id"`
	PatientID         uuid.UUID         `json:"patient_id"`
	Date              string            `json:"date"`
	Time              string            `json:"time"`
	Status            string            `json:"status"`
	PatientName       string            `json:"patient_name"`
	PatientAvatar     string            `json:"patient_avatar,omitempty"`
	DoctorAttended    bool              `json:"doctor_attended"`
	Diagnosis         string            `json:"diagnosis,omitempty"`
	Prescription      string            `json:"prescription,omitempty"`
	ExaminationResult string            `json:"examination_result,omitempty"`
	Documents         map[string]string `json:"documents,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID                   `json:"doctor_id"`
	Date     string                      `json:"date"`
	Slots    []appointment.SlotCandidate `json:"available_time_slots"`
}

type DoctorResponse struct {
	ID             uuid.UUID                   `json:"id"`
	FirstName      string                      `json:"first_name"`
	LastName       string                      `json:"last_name"`
	Specialization string                      `json:"specialization"`
	Price          float64                     `json:"price"`
	Avatar         string                      `json:"avatar,omitempty"`
	Timings        schedule.WeeklyAvailability `json:"timings"`
	Star           float64                     `json:"star"`
	Evaluations    int                         `json:"evaluations"`
}

type OTPSentResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OTPVerifiedResponse struct {
	Verified bool `json:"verified"`
}

type ErrorResponse struct {
	Error         string             `json:"error"`
	Details       string             `json:"details,omitempty"`
	AvailableDays []schedule.Weekday `json:"available_days,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		DoctorID:          a.DoctorID,
		PatientID:         a.PatientID,
		Date:              a.Date.Format(schedule.DateLayout),
		Time:              a.Time.String(),
		Status:            string(a.Status),
		PatientName:       a.PatientName,
		PatientAvatar:     a.PatientAvatar,
		DoctorAttended:    a.DoctorAttended,
		Diagnosis:         a.Diagnosis,
		Prescription:      a.Prescription,
		ExaminationResult: a.ExaminationResult,
		Documents:         a.Documents,
		CreatedAt:         a.CreatedAt,
		ExpiresAt:         a.ExpiresAt,
	}
}

func toAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(appts))
	for i := range appts {
		out[i] = toAppointmentResponse(&appts[i])
	}
	return out
}

func toDoctorResponse(d *appointment.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
		Price:          d.Price,
		Avatar:         d.Avatar,
		Timings:        d.Timings,
		Star:           d.Star,
		Evaluations:    d.Evaluations,
	}
}

func toDoctorList(doctors []appointment.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, len(doctors))
	for i := range doctors {
		out[i] = toDoctorResponse(&doctors[i])
	}
	return out
}
