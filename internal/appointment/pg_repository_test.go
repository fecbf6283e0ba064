package appointment

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

// These tests run against a real database and are skipped unless
// POSTGRES_DSN is set.
func newPgRepository(t *testing.T) (*PgRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))

	return NewPgRepository(pool), pool
}

type pgFixture struct {
	doctorID  uuid.UUID
	patientID uuid.UUID
	specialty string
}

func seedPg(t *testing.T, pool *pgxpool.Pool) pgFixture {
	t.Helper()
	ctx := context.Background()
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	f := pgFixture{doctorID: uuid.New(), patientID: uuid.New(), specialty: "Spec " + tag}

	_, err := pool.Exec(ctx, `
		INSERT INTO doctors (id, first_name, last_name, email, specialization, price, timings)
		VALUES ($1, 'Amina', 'Haddad', $2, $3, 40, '[]'::jsonb)
	`, f.doctorID, "doc-"+tag+"@example.com", f.specialty)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email)
		VALUES ($1, 'Karim', 'Ben Ali', $2)
	`, f.patientID, "pat-"+tag+"@example.com")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM appointments WHERE doctor_id = $1`, f.doctorID)
		_, _ = pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, f.patientID)
		_, _ = pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, f.doctorID)
	})
	return f
}

func (f pgFixture) pending(at schedule.TimeOfDay) Appointment {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	return Appointment{
		DoctorID:    f.doctorID,
		PatientID:   f.patientID,
		Date:        monday,
		Time:        at,
		PatientName: "Karim Ben Ali",
		ExpiresAt:   &expires,
	}
}

func TestPgRepository_DuplicateActiveSlot(t *testing.T) {
	repo, pool := newPgRepository(t)
	f := seedPg(t, pool)
	ctx := context.Background()

	first, err := repo.CreatePendingAppointment(ctx, f.pending(schedule.TimeOfDay(9*60)))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)
	assert.True(t, first.Date.Equal(monday))

	_, err = repo.CreatePendingAppointment(ctx, f.pending(schedule.TimeOfDay(9*60)))
	assert.ErrorIs(t, err, ErrDuplicateSlot)

	_, err = repo.CreatePendingAppointment(ctx, f.pending(schedule.TimeOfDay(9*60+15)))
	assert.NoError(t, err, "other minutes stay bookable")

	_, err = repo.UpdateAppointmentStatus(ctx, first.ID, StatusPending, StatusCancelled)
	require.NoError(t, err)

	again, err := repo.CreatePendingAppointment(ctx, f.pending(schedule.TimeOfDay(9*60)))
	require.NoError(t, err, "cancelled rows do not hold the slot")
	assert.NotEqual(t, first.ID, again.ID)
}

func TestPgRepository_UpdateStatusIsConditional(t *testing.T) {
	repo, pool := newPgRepository(t)
	f := seedPg(t, pool)
	ctx := context.Background()

	appt, err := repo.CreatePendingAppointment(ctx, f.pending(schedule.TimeOfDay(10*60)))
	require.NoError(t, err)
	require.NotNil(t, appt.ExpiresAt)

	_, err = repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusDone)
	assert.ErrorIs(t, err, ErrAppointmentNotFound, "row is not in the expected status")

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)

	confirmed, err := repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.ExpiresAt, "confirmed rows no longer expire")

	_, err = repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound, "a second writer loses")

	_, err = repo.UpdateAppointmentStatus(ctx, uuid.New(), StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepository_SearchAndRateDoctors(t *testing.T) {
	repo, pool := newPgRepository(t)
	f := seedPg(t, pool)
	ctx := context.Background()

	found, err := repo.SearchDoctors(ctx, strings.ToUpper(f.specialty), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.doctorID, found[0].ID)

	// "_" must not act as a single character wildcard
	found, err = repo.SearchDoctors(ctx, strings.Replace(f.specialty, " ", "_", 1), 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	d, err := repo.RateDoctor(ctx, f.doctorID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.Star)

	d, err = repo.RateDoctor(ctx, f.doctorID, 5)
	require.NoError(t, err)
	assert.Equal(t, 4.5, d.Star)
	assert.Equal(t, 9, d.TotalStars)
	assert.Equal(t, 2, d.Evaluations)

	_, err = repo.RateDoctor(ctx, uuid.New(), 3)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
