package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/notify"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

const (
	EventAppointmentCreated           = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged     = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentExpired           = "APPOINTMENT_EXPIRED"
	EventAppointmentDeleted           = "APPOINTMENT_DELETED"
	EventAppointmentEncounterRecorded = "APPOINTMENT_ENCOUNTER_RECORDED"
)

const sweepTimeout = 10 * time.Second

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notify.Notifier
	cfg      config.Config
	log      zerolog.Logger
	expiry   *ExpiryScheduler
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, cfg config.Config, log zerolog.Logger) *Service {
	s := &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "appointment").Logger(),
		now:      time.Now,
	}
	s.expiry = NewExpiryScheduler(s.expire)
	return s
}

// Close disarms all pending expiry sweeps.
func (s *Service) Close() {
	s.expiry.Stop()
}

func lockKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("doctor:%s:%s", doctorID, date.Format(schedule.DateLayout))
}

func startTimes(appts []Appointment) []schedule.TimeOfDay {
	times := make([]schedule.TimeOfDay, 0, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			times = append(times, a.Time)
		}
	}
	return times
}

func (s *Service) loadDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return doctor, nil
}

// BookAppointment reserves date/time with a doctor for a patient. The
// conflict check and the insert run under a lock scoped to the doctor and
// the date so two overlapping requests cannot both succeed.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if !req.Time.Valid() {
		return nil, schedule.ErrInvalidTime
	}
	date := schedule.DateOf(req.Date)

	doctor, err := s.loadDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	day := schedule.WeekdayOf(date)
	if len(doctor.Timings.Ranges(day)) == 0 {
		return nil, &DayUnavailableError{Day: day, AvailableDays: doctor.Timings.AvailableDays()}
	}
	if !doctor.Timings.Covers(day, req.Time) {
		return nil, ErrTimeUnavailable
	}

	var (
		created *Appointment
		patient *Patient
	)

	err = s.locker.WithLock(ctx, lockKey(doctor.ID, date), func(lockCtx context.Context) error {
		existing, err := s.repo.ListActiveByDoctorAndDate(lockCtx, doctor.ID, date)
		if err != nil {
			return fmt.Errorf("list appointments of the day: %w", err)
		}
		if schedule.HasConflict(req.Time, startTimes(existing), s.cfg.BookingBuffer) {
			return ErrSlotTaken
		}

		patient, err = s.repo.GetPatientByID(lockCtx, req.PatientID)
		if err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return err
			}
			return fmt.Errorf("load patient: %w", err)
		}

		expiresAt := s.now().Add(s.cfg.PaymentWindow)
		appt, err := s.repo.CreatePendingAppointment(lockCtx, Appointment{
			DoctorID:      doctor.ID,
			PatientID:     patient.ID,
			Date:          date,
			Time:          req.Time,
			Status:        StatusPending,
			PatientName:   patient.FullName(),
			PatientAvatar: patient.Avatar,
			ExpiresAt:     &expiresAt,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				return ErrSlotTaken
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  doctor.ID.String(),
			"patient_id": patient.ID.String(),
			"date":       date.Format(schedule.DateLayout),
			"time":       req.Time.String(),
			"expires_at": expiresAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.expiry.Schedule(created.ID, s.cfg.PaymentWindow)

	s.notify(ctx, notify.EventAppointmentBooked, patient.Email, created)

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("date", date.Format(schedule.DateLayout)).
		Str("time", req.Time.String()).
		Msg("appointment booked")

	return created, nil
}

// AvailableSlots lists the slot grid of the doctor's weekday for date and
// marks the slots that collide with an active appointment within the
// booking buffer.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotCandidate, error) {
	date = schedule.DateOf(date)

	doctor, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	slots, err := schedule.EnumerateSlots(doctor.Timings, schedule.WeekdayOf(date), s.cfg.SlotGranularity)
	if err != nil {
		return nil, fmt.Errorf("enumerate slots of doctor %s: %w", doctor.ID, err)
	}
	if len(slots) == 0 {
		return []SlotCandidate{}, nil
	}

	existing, err := s.repo.ListActiveByDoctorAndDate(ctx, doctor.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments of the day: %w", err)
	}
	taken := startTimes(existing)

	out := make([]SlotCandidate, len(slots))
	for i, t := range slots {
		out[i] = SlotCandidate{
			Time:      t,
			Available: !schedule.HasConflict(t, taken, s.cfg.BookingBuffer),
		}
	}
	return out, nil
}

// UpdateStatus moves an appointment along its lifecycle. Leaving pending
// disarms the expiry sweep.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next AppointmentStatus) (*Appointment, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return nil, err
	}

	appt, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, next)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, next)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}
		// The row changed underneath us, the sweep or another request won.
		current, getErr := s.getAppointment(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
	}

	if appt.Status == StatusPending {
		s.expiry.Cancel(id)
	}

	s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
		"from": appt.Status,
		"to":   next,
	})
	s.notify(ctx, notify.EventAppointmentStatus, "", updated)

	return updated, nil
}

// GetAppointment retrieves one appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.getAppointment(ctx, id)
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// ListDoctorAppointments returns the doctor's appointments, restricted to one
// day when date is set.
func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error) {
	if date != nil {
		d := schedule.DateOf(*date)
		date = &d
	}
	appts, err := s.repo.ListByDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// RecordEncounter stores the doctor's notes for a visit and marks it attended.
// Cancelled appointments cannot be annotated.
func (s *Service) RecordEncounter(ctx context.Context, id uuid.UUID, enc Encounter) (*Appointment, error) {
	appt, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cannot record an encounter on a cancelled appointment", ErrInvalidTransition)
	}

	updated, err := s.repo.RecordEncounter(ctx, id, enc)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := s.getAppointment(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: appointment was cancelled", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("record encounter: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentEncounterRecorded, map[string]any{
		"documents": len(enc.Documents),
	})

	return updated, nil
}

// DeleteAppointment removes the record outright and disarms its sweep.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.expiry.Cancel(id)
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

// RearmPending restores expiry timers for appointments that were pending
// when the process last stopped. Overdue ones fire immediately.
func (s *Service) RearmPending(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending appointments: %w", err)
	}

	now := s.now()
	for _, appt := range pending {
		deadline := appt.CreatedAt.Add(s.cfg.PaymentWindow)
		if appt.ExpiresAt != nil {
			deadline = *appt.ExpiresAt
		}
		delay := deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.expiry.Schedule(appt.ID, delay)
	}

	return len(pending), nil
}

// ExpireOverdue cancels every pending appointment whose payment window has
// passed. It is called by the expiry worker periodically.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		if s.cancelIfPending(ctx, appt.ID, "worker") {
			expired++
		}
	}

	return expired, nil
}

// expire is the timer callback. It never returns an error; problems are logged.
func (s *Service) expire(ctx context.Context, id uuid.UUID) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	s.cancelIfPending(sweepCtx, id, "payment_window")
}

func (s *Service) cancelIfPending(ctx context.Context, id uuid.UUID, reason string) bool {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusPending, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.log.Debug().Str("appointment_id", id.String()).Msg("expiry skipped, appointment no longer pending")
			return false
		}
		s.log.Error().Err(err).Str("appointment_id", id.String()).Msg("failed to expire appointment")
		return false
	}

	s.expiry.Cancel(id)
	s.logEvent(ctx, id, EventAppointmentExpired, map[string]any{
		"reason": reason,
	})
	s.notify(ctx, notify.EventAppointmentCancelled, "", updated)

	s.log.Info().Str("appointment_id", id.String()).Str("reason", reason).Msg("pending appointment cancelled")
	return true
}

func (s *Service) notify(ctx context.Context, eventType, recipient string, appt *Appointment) {
	ev := notify.Event{
		Type:      eventType,
		Recipient: recipient,
		Data: map[string]any{
			"appointment_id": appt.ID.String(),
			"doctor_id":      appt.DoctorID.String(),
			"patient_id":     appt.PatientID.String(),
			"date":           appt.Date.Format(schedule.DateLayout),
			"time":           appt.Time.String(),
			"status":         string(appt.Status),
		},
		OccurredAt: s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("notification failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
