package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logging"
	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

func main() {
	doctors := flag.Int("doctors", 100, "number of doctors to create")
	patients := flag.Int("patients", 9000, "number of patients to create")
	flag.Parse()

	logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedDoctors(context.Background(), pool, faker, logger, *doctors); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, faker, logger, *patients); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func clock(hour, minute int) schedule.TimeOfDay {
	return schedule.TimeOfDay(hour*60 + minute)
}

// fakeTimings gives a doctor two to five working days, each with a morning
// block and sometimes an afternoon block.
func fakeTimings(faker *gofakeit.Faker) schedule.WeeklyAvailability {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	faker.ShuffleAnySlice(days)

	n := faker.Number(2, 5)
	timings := make(schedule.WeeklyAvailability, 0, n)
	for _, d := range days[:n] {
		start := faker.Number(7, 10)
		hours := []schedule.TimeRange{{
			Start: clock(start, 0),
			End:   clock(start+faker.Number(2, 4), 0),
		}}
		if faker.Bool() {
			pm := faker.Number(14, 16)
			hours = append(hours, schedule.TimeRange{
				Start: clock(pm, 0),
				End:   clock(pm+faker.Number(1, 3), 30),
			})
		}
		timings = append(timings, schedule.DayAvailability{Day: schedule.Weekday(d), Hours: hours})
	}
	return timings
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		timings := fakeTimings(faker)
		if err := timings.Validate(); err != nil {
			return err
		}
		raw, err := json.Marshal(timings)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, first_name, last_name, email, specialization, price, avatar, timings, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (email) DO NOTHING
		`,
			uuid.New(),
			faker.FirstName(),
			faker.LastName(),
			faker.Email(),
			specializations[faker.Number(0, len(specializations)-1)],
			faker.Price(20, 150),
			faker.URL(),
			raw,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, first_name, last_name, email, avatar, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
				ON CONFLICT (email) DO NOTHING
			`, uuid.New(), faker.FirstName(), faker.LastName(), faker.Email(), faker.URL())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
