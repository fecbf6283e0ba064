package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

const uniqueViolation = "23505"

const appointmentColumns = `id, doctor_id, patient_id, date, start_minute, status,
	patient_name, patient_avatar, doctor_attended,
	diagnosis, prescription, examination_result, documents,
	created_at, updated_at, expires_at`

const doctorColumns = `id, first_name, last_name, email, specialization, price::float8, avatar, timings,
	star, total_stars, evaluations, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Avatar,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var timings []byte

	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Email,
		&d.Specialization,
		&d.Price,
		&d.Avatar,
		&timings,
		&d.Star,
		&d.TotalStars,
		&d.Evaluations,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(timings, &d.Timings); err != nil {
		return nil, fmt.Errorf("decode timings of doctor %s: %w", d.ID, err)
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var minute int16
	var documents []byte

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&minute,
		&a.Status,
		&a.PatientName,
		&a.PatientAvatar,
		&a.DoctorAttended,
		&a.Diagnosis,
		&a.Prescription,
		&a.ExaminationResult,
		&documents,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Time = schedule.TimeOfDay(minute)
	a.Date = schedule.DateOf(a.Date)
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &a.Documents); err != nil {
			return nil, fmt.Errorf("decode documents of appointment %s: %w", a.ID, err)
		}
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, avatar, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// SearchDoctors matches query case-insensitively against first name, last
// name and specialization. LIKE wildcards in query are taken literally.
func (r *PgRepository) SearchDoctors(ctx context.Context, query string, limit int) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE first_name ILIKE $1
		   OR last_name ILIKE $1
		   OR specialization ILIKE $1
		ORDER BY star DESC, last_name, first_name
		LIMIT $2
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RateDoctor adds one evaluation and recomputes the average in the same
// statement, so concurrent ratings do not lose updates.
func (r *PgRepository) RateDoctor(ctx context.Context, id uuid.UUID, stars int) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET total_stars = total_stars + $2,
		    evaluations = evaluations + 1,
		    star = LEAST(5, (total_stars + $2)::float8 / (evaluations + 1)),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns, id, stars)
	return scanDoctor(row)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND status <> 'cancelled'
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND ($2::date IS NULL OR date = $2::date)
		ORDER BY date, start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minute DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, start_minute, status,
			patient_name, patient_avatar, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, now(), now(), $8)
		RETURNING `+appointmentColumns,
		appt.ID, appt.DoctorID, appt.PatientID, appt.Date, int16(appt.Time),
		appt.PatientName, appt.PatientAvatar, appt.ExpiresAt)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

// UpdateAppointmentStatus only applies when the row is still in status from;
// otherwise it reports ErrAppointmentNotFound.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now(),
		    expires_at = CASE WHEN $2 = 'pending' THEN expires_at ELSE NULL END
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) RecordEncounter(ctx context.Context, id uuid.UUID, enc Encounter) (*Appointment, error) {
	docs := enc.Documents
	if docs == nil {
		docs = map[string]string{}
	}
	documents, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_attended = true,
		    diagnosis = $2,
		    prescription = $3,
		    examination_result = $4,
		    documents = documents || $5::jsonb,
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns,
		id, enc.Diagnosis, enc.Prescription, enc.ExaminationResult, documents)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListPending(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
