package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"festreg/internal/notify"
)

// Source delivers raw queue messages to a handler.
type Source interface {
	Consume(handler func([]byte) error) error
}

type Reader struct {
	source Source
	sender notify.Sender
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(source Source, sender notify.Sender) *Reader {
	return &Reader{
		source: source,
		sender: sender,
		done:   make(chan struct{}),
	}
}

// Handle decodes one queued notification and delivers it.
// Malformed messages are acknowledged and dropped.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var n notify.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		return nil
	}
	if n.To == "" {
		zlog.Logger.Warn().Str("template", string(n.Template)).Msg("notification without recipient, skipping")
		return nil
	}

	zlog.Logger.Info().
		Str("to", n.To).
		Str("template", string(n.Template)).
		Msg("Received notification from RabbitMQ")

	if err := r.sender.Send(ctx, n); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("to", n.To).
			Str("template", string(n.Template)).
			Msg("Failed to send notification e-mail")
		return err
	}

	zlog.Logger.Info().
		Str("to", n.To).
		Str("template", string(n.Template)).
		Msg("Notification e-mail sent")
	return nil
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			return r.Handle(cctx, body)
		}

		if err := r.source.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("RabbitMQ Reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
