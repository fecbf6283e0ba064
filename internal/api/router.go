package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
)

// AppointmentService is the part of appointment.Service the HTTP layer uses.
type AppointmentService interface {
	BookAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.SlotCandidate, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next appointment.AppointmentStatus) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]appointment.Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]appointment.Appointment, error)
	RecordEncounter(ctx context.Context, id uuid.UUID, enc appointment.Encounter) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	SearchDoctors(ctx context.Context, query string) ([]appointment.Doctor, error)
	RateDoctor(ctx context.Context, doctorID uuid.UUID, stars int) (*appointment.Doctor, error)
}

type OTPService interface {
	Send(ctx context.Context, email string) (time.Time, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	OTP          OTPService
	Checks       []DependencyCheck
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	log := cfg.Logger

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoveryMiddleware(log))

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	svc := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc, log))
		r.Get("/", listAppointmentsHandler(svc, log))
		r.Get("/{id}", getAppointmentHandler(svc, log))
		r.Patch("/{id}/status", updateStatusHandler(svc, log))
		r.Post("/{id}/encounter", recordEncounterHandler(svc, log))
		r.Delete("/{id}", deleteAppointmentHandler(svc, log))
	})
	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", searchDoctorsHandler(svc, log))
		r.Get("/{id}/slots", availableSlotsHandler(svc, log))
		r.Post("/{id}/rating", rateDoctorHandler(svc, log))
	})

	if cfg.OTP != nil {
		r.Post("/otp/send", sendOTPHandler(cfg.OTP, log))
		r.Post("/otp/verify", verifyOTPHandler(cfg.OTP, log))
	}

	return r
}
