// Package notify hands appointment and account notices to the email
// dispatcher. Delivery itself happens outside this service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentStatus    = "appointment.status_changed"
	EventAppointmentCancelled = "appointment.expired"
	EventOTPRequested         = "otp.requested"
)

type Event struct {
	Type       string         `json:"type"`
	Recipient  string         `json:"recipient,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Async sends through next on a background goroutine so callers never wait
// on delivery. Failures are logged and dropped.
type Async struct {
	next    Notifier
	log     zerolog.Logger
	timeout time.Duration
}

func NewAsync(next Notifier, log zerolog.Logger, timeout time.Duration) *Async {
	return &Async{next: next, log: log, timeout: timeout}
}

func (a *Async) Notify(ctx context.Context, ev Event) error {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, ev); err != nil {
			a.log.Warn().Err(err).Str("event", ev.Type).Msg("notification dropped")
		}
	}()
	return nil
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
