// Package otp issues and checks the one-time codes used to verify a
// patient's email address.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/doctor-appointment-booking/internal/notify"
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrCodeRequired  = errors.New("email and otp are required")
	ErrOTPNotFound   = errors.New("otp record not found or expired")
	ErrTooManyTries  = errors.New("too many otp attempts, request a new code")
)

const (
	codeMin = 1000
	codeMax = 9999

	// MaxAttempts bounds how many codes may be tried against one issued OTP.
	MaxAttempts = 5
)

type Service struct {
	rdb      *redis.Client
	notifier notify.Notifier
	ttl      time.Duration
	log      zerolog.Logger
}

func NewService(rdb *redis.Client, notifier notify.Notifier, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		rdb:      rdb,
		notifier: notifier,
		ttl:      ttl,
		log:      log.With().Str("component", "otp").Logger(),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func key(email string) string {
	return "otp:" + normalize(email)
}

func attemptsKey(email string) string {
	return "otp:attempts:" + normalize(email)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// Send replaces any earlier code for email with a fresh one and hands it to
// the notifier for delivery. It returns when the code expires.
func (s *Service) Send(ctx context.Context, email string) (time.Time, error) {
	if strings.TrimSpace(email) == "" {
		return time.Time{}, ErrEmailRequired
	}

	code, err := generateCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return time.Time{}, fmt.Errorf("hash otp: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(email), hash, s.ttl)
	pipe.Del(ctx, attemptsKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, fmt.Errorf("store otp: %w", err)
	}
	expiresAt := time.Now().Add(s.ttl)

	err = s.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventOTPRequested,
		Recipient: email,
		Data: map[string]any{
			"otp":        code,
			"expires_at": expiresAt.UTC(),
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("otp notification failed")
	}

	return expiresAt, nil
}

// Verify checks code against the stored hash. A match consumes the code.
// After MaxAttempts tries the code is discarded and ErrTooManyTries returned.
func (s *Service) Verify(ctx context.Context, email, code string) (bool, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return false, ErrCodeRequired
	}

	hash, err := s.rdb.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrOTPNotFound
		}
		return false, fmt.Errorf("load otp: %w", err)
	}

	tries, err := s.countAttempt(ctx, email)
	if err != nil {
		return false, err
	}
	if tries > MaxAttempts {
		if err := s.rdb.Del(ctx, key(email), attemptsKey(email)).Err(); err != nil {
			s.log.Warn().Err(err).Msg("failed to discard exhausted otp")
		}
		return false, ErrTooManyTries
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(strings.TrimSpace(code))); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare otp: %w", err)
	}

	if err := s.rdb.Del(ctx, key(email), attemptsKey(email)).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete consumed otp")
	}
	return true, nil
}

func (s *Service) countAttempt(ctx context.Context, email string) (int64, error) {
	k := attemptsKey(email)
	n, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("count otp attempt: %w", err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, k, s.ttl).Err(); err != nil {
			return 0, fmt.Errorf("expire otp attempts: %w", err)
		}
	}
	return n, nil
}
