package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepository mirrors the Postgres behaviour the service relies on,
// including the unique index on active (doctor, date, minute) rows.
type memRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	events       []EventLog

	// called between the conflict read and the insert, lets tests widen races
	beforeInsert func()
	// called before a conditional status update takes the lock
	beforeUpdate func(id uuid.UUID)
}

func newMemRepository() *memRepository {
	return &memRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *memRepository) addDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *memRepository) addPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *memRepository) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func (r *memRepository) status(id uuid.UUID) AppointmentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appointments[id].Status
}

func (r *memRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memRepository) SearchDoctors(_ context.Context, query string, limit int) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	var out []Doctor
	for _, d := range r.doctors {
		if strings.Contains(strings.ToLower(d.FirstName), q) ||
			strings.Contains(strings.ToLower(d.LastName), q) ||
			strings.Contains(strings.ToLower(d.Specialization), q) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Star != out[j].Star {
			return out[i].Star > out[j].Star
		}
		return out[i].LastName < out[j].LastName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) RateDoctor(_ context.Context, id uuid.UUID, stars int) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.TotalStars += stars
	d.Evaluations++
	d.Star = float64(d.TotalStars) / float64(d.Evaluations)
	if d.Star > 5 {
		d.Star = 5
	}
	r.doctors[id] = d
	return &d, nil
}

func (r *memRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepository) filter(keep func(Appointment) bool) []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func (r *memRepository) ListActiveByDoctorAndDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	out := r.filter(func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Date.Equal(date) && a.Status.Active()
	})
	if r.beforeInsert != nil {
		r.beforeInsert()
	}
	return out, nil
}

func (r *memRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool {
		return a.DoctorID == doctorID && (date == nil || a.Date.Equal(*date))
	}), nil
}

func (r *memRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *memRepository) CreatePendingAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.DoctorID == appt.DoctorID && a.Date.Equal(appt.Date) && a.Time == appt.Time && a.Status.Active() {
			return nil, ErrDuplicateSlot
		}
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.Status = StatusPending
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *memRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	if to != StatusPending {
		a.ExpiresAt = nil
	}
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) RecordEncounter(_ context.Context, id uuid.UUID, enc Encounter) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}
	docs := make(map[string]string, len(a.Documents)+len(enc.Documents))
	for k, v := range a.Documents {
		docs[k] = v
	}
	for k, v := range enc.Documents {
		docs[k] = v
	}
	a.DoctorAttended = true
	a.Diagnosis = enc.Diagnosis
	a.Prescription = enc.Prescription
	a.ExaminationResult = enc.ExaminationResult
	a.Documents = docs
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *memRepository) ListPending(_ context.Context) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.Status == StatusPending }), nil
}

func (r *memRepository) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool {
		return a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now)
	}), nil
}

func (r *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}
