package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-appointment-booking/internal/api"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logging"
	"github.com/hackgods/doctor-appointment-booking/internal/notify"
	"github.com/hackgods/doctor-appointment-booking/internal/otp"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(os.Getenv("APP_ENV"), "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("locker", cfg.Locker).
		Dur("payment_window", cfg.PaymentWindow).
		Dur("booking_buffer", cfg.BookingBuffer).
		Dur("slot_granularity", cfg.SlotGranularity).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		logger.Fatal().Err(err).Msg("schema migration error")
	}
	logger.Info().Msg("connected to Postgres")

	// Redis backs the booking lock, notifications and OTP codes. With the
	// local locker the server can run without it.
	var rdb *redis.Client
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
	switch {
	case err == nil:
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	case cfg.Locker == "local":
		logger.Warn().Err(err).Msg("redis unavailable, running without notifications and OTP")
		rdb = nil
	default:
		logger.Fatal().Err(err).Msg("redis connection error")
	}

	var notifier notify.Notifier = notify.Nop{}
	if rdb != nil {
		notifier = notify.NewAsync(notify.NewRedisPublisher(rdb, cfg.NotifyChannel), logger, 5*time.Second)
	}

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewLocker(cfg, rdb)
	svc := appointment.NewService(repo, locker, notifier, cfg, logger)
	defer svc.Close()

	if n, err := svc.RearmPending(rootCtx); err != nil {
		logger.Error().Err(err).Msg("could not rearm pending appointments")
	} else {
		logger.Info().Int("count", n).Msg("rearmed pending appointments")
	}

	checks := []api.DependencyCheck{
		{Name: "postgres", Critical: true, Ping: pgPool.Ping},
	}
	routerCfg := api.RouterConfig{
		Appointments: svc,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	}
	if rdb != nil {
		checks = append(checks, api.DependencyCheck{
			Name:     "redis",
			Critical: cfg.Locker == "redis",
			Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		routerCfg.OTP = otp.NewService(rdb, notifier, cfg.OTPTTL, logger)
	}
	routerCfg.Checks = checks

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
	}
}
