// Package notify carries outbound participant notifications off the request path.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"festreg/internal/metrics"
)

type Template string

const (
	TemplateRegistrationPending   Template = "registration_pending"
	TemplateRegistrationConfirmed Template = "registration_confirmed"
	TemplatePaymentApproved       Template = "payment_approved"
	TemplatePaymentRejected       Template = "payment_rejected"
	TemplateAccountCreated        Template = "account_created"
	TemplateTeamRegistration      Template = "team_registration"
)

type Notification struct {
	To       string            `json:"to"`
	Template Template          `json:"template"`
	Data     map[string]string `json:"data"`
}

// Sender delivers one notification. Implementations may block on I/O.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

const sendTimeout = 15 * time.Second

// Dispatcher queues notifications and delivers them from background workers.
// Dispatch never blocks the caller; delivery failures are logged and counted.
type Dispatcher struct {
	sender  Sender
	queue   chan Notification
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	workers int
	log     *zerolog.Logger
}

func NewDispatcher(sender Sender, workers, queueSize int, log *zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Notification, queueSize),
		done:    make(chan struct{}),
		workers: workers,
		log:     log,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.log.Info().Int("workers", d.workers).Msg("notification dispatcher started")
}

func (d *Dispatcher) Dispatch(n Notification) {
	select {
	case <-d.done:
		d.log.Warn().Str("to", n.To).Str("template", string(n.Template)).Msg("dispatcher stopped, notification dropped")
		metrics.NotificationFailures.Inc()
		return
	default:
	}

	select {
	case d.queue <- n:
	default:
		d.log.Warn().Str("to", n.To).Str("template", string(n.Template)).Msg("notification queue full, notification dropped")
		metrics.NotificationFailures.Inc()
	}
}

// Stop lets the workers drain what is already queued and waits for them.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.deliver(ctx, n)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, n); err != nil {
		metrics.NotificationFailures.Inc()
		d.log.Warn().
			Err(err).
			Str("to", n.To).
			Str("template", string(n.Template)).
			Msg("failed to deliver notification")
		return
	}
	metrics.NotificationsSent.Inc()
	d.log.Debug().Str("to", n.To).Str("template", string(n.Template)).Msg("notification delivered")
}

// LogSender only logs notifications. Used when no transport is configured.
type LogSender struct {
	Log *zerolog.Logger
}

func (s LogSender) Send(_ context.Context, n Notification) error {
	s.Log.Info().Str("to", n.To).Str("template", string(n.Template)).Msg("notification (log only)")
	return nil
}
